package models

import "fmt"

// ActorKind identifies who is requesting a transition.
type ActorKind string

const (
	ActorCustomer ActorKind = "customer"
	ActorProvider ActorKind = "provider"
	ActorAdmin    ActorKind = "admin"
	ActorSystem   ActorKind = "system"
)

// Actor is the verified identity behind a request.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id,omitempty"`
}

func CustomerActor(id string) Actor { return Actor{Kind: ActorCustomer, ID: id} }
func ProviderActor(id string) Actor { return Actor{Kind: ActorProvider, ID: id} }
func AdminActor(id string) Actor    { return Actor{Kind: ActorAdmin, ID: id} }
func SystemActor() Actor            { return Actor{Kind: ActorSystem} }

func (a Actor) IsCustomer(id string) bool { return a.Kind == ActorCustomer && a.ID == id }
func (a Actor) IsSystem() bool            { return a.Kind == ActorSystem }

// IsOperator is true for actors allowed to drive back-office workflows.
func (a Actor) IsOperator() bool {
	return a.Kind == ActorSystem || a.Kind == ActorAdmin
}

func (a Actor) String() string {
	if a.ID == "" {
		return string(a.Kind)
	}
	return fmt.Sprintf("%s:%s", a.Kind, a.ID)
}

// ParseActorKind maps a token role claim to an ActorKind.
func ParseActorKind(role string) (ActorKind, error) {
	switch ActorKind(role) {
	case ActorCustomer, ActorProvider, ActorAdmin:
		return ActorKind(role), nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}
