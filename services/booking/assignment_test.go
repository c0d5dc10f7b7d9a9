package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fieldhand/models"
)

func TestAssignmentResolver_TryAssign(t *testing.T) {
	ctx := context.Background()

	t.Run("Given two simultaneous attempts When both run Then exactly one succeeds and the other sees already assigned", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			// Given
			f := newFixture(t, plumber("p1", 9, 2), plumber("p2", 8, 2))
			f.seed(t, confirmedUnassigned("b1", models.PaymentPaid))

			// When
			var wg sync.WaitGroup
			type outcome struct {
				ok  bool
				err error
			}
			results := make([]outcome, 2)
			for j := range results {
				wg.Add(1)
				go func(j int) {
					defer wg.Done()
					_, ok, err := f.resolver.TryAssign(ctx, "b1")
					results[j] = outcome{ok, err}
				}(j)
			}
			wg.Wait()

			// Then
			wins := 0
			for _, r := range results {
				switch {
				case r.ok && r.err == nil:
					wins++
				case errors.Is(r.err, ErrAlreadyAssigned):
				default:
					t.Fatalf("iteration %d: unexpected outcome ok=%v err=%v", i, r.ok, r.err)
				}
			}
			if wins != 1 {
				t.Fatalf("iteration %d: expected one winner, got %d", i, wins)
			}

			b := f.get(t, "b1")
			if !b.HasProvider() {
				t.Fatalf("iteration %d: booking has no provider", i)
			}
			busy := 0
			for _, id := range []string{"p1", "p2"} {
				p, _ := f.providers.GetByID(ctx, id)
				if !p.Available {
					busy++
					if p.CurrentBookingID != "b1" || id != *b.ProviderID {
						t.Fatalf("iteration %d: wrong provider held: %+v", i, p)
					}
				}
			}
			if busy != 1 {
				t.Fatalf("iteration %d: expected one busy provider, got %d", i, busy)
			}
		}
	})

	t.Run("Given no available provider When assigning Then no assignment yet", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, confirmedUnassigned("b1", models.PaymentPaid))

		id, ok, err := f.resolver.TryAssign(ctx, "b1")

		if err != nil || ok || id != "" {
			t.Errorf("expected no assignment, got %q %v %v", id, ok, err)
		}
		if b := f.get(t, "b1"); b.Status != models.StatusConfirmed || b.HasProvider() {
			t.Errorf("booking must stay confirmed and unassigned: %+v", b)
		}
	})

	t.Run("Given candidates When assigning Then the best rated provider is bound", func(t *testing.T) {
		f := newFixture(t, plumber("low", 6, 2), plumber("high", 10, 2))
		f.seed(t, confirmedUnassigned("b1", models.PaymentPaid))

		id, ok, err := f.resolver.TryAssign(ctx, "b1")

		if err != nil || !ok || id != "high" {
			t.Errorf("expected high, got %q %v %v", id, ok, err)
		}
	})

	t.Run("Given a pending booking When assigning Then InvalidTransition", func(t *testing.T) {
		f := newFixture(t, plumber("p1", 0, 0))
		b := f.create(t, 500)

		_, _, err := f.resolver.TryAssign(ctx, b.ID)

		if !IsInvalidTransition(err) {
			t.Errorf("expected InvalidTransition, got %v", err)
		}
	})
}

func TestAssignmentResolver_AssignProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("Given the same provider When accepting twice Then the second call is a no-op", func(t *testing.T) {
		f := newFixture(t, plumber("p1", 0, 0))
		f.seed(t, confirmedUnassigned("b1", models.PaymentPaid))

		first, err := f.resolver.AssignProvider(ctx, "b1", "p1", models.ProviderActor("p1"))
		if err != nil {
			t.Fatalf("first accept: %v", err)
		}
		second, err := f.resolver.AssignProvider(ctx, "b1", "p1", models.ProviderActor("p1"))
		if err != nil {
			t.Fatalf("second accept: %v", err)
		}
		if second.Version != first.Version {
			t.Errorf("idempotent accept must not write, versions %d vs %d", first.Version, second.Version)
		}
	})

	t.Run("Given an assigned booking When another provider accepts Then ErrAlreadyAssigned", func(t *testing.T) {
		f := newFixture(t, plumber("p1", 0, 0), plumber("p2", 0, 0))
		f.seed(t, confirmedUnassigned("b1", models.PaymentPaid))
		_, _ = f.resolver.AssignProvider(ctx, "b1", "p1", models.ProviderActor("p1"))

		_, err := f.resolver.AssignProvider(ctx, "b1", "p2", models.ProviderActor("p2"))

		if !errors.Is(err, ErrAlreadyAssigned) {
			t.Errorf("expected ErrAlreadyAssigned, got %v", err)
		}
		p2, _ := f.providers.GetByID(ctx, "p2")
		if !p2.Available {
			t.Errorf("losing provider must stay available")
		}
	})

	t.Run("Given a busy provider When accepting another booking Then InvalidTransition", func(t *testing.T) {
		f := newFixture(t, plumber("p1", 0, 0))
		f.seed(t, confirmedUnassigned("b1", models.PaymentPaid))
		f.seed(t, confirmedUnassigned("b2", models.PaymentPaid))
		_, _ = f.resolver.AssignProvider(ctx, "b1", "p1", models.ProviderActor("p1"))

		_, err := f.resolver.AssignProvider(ctx, "b2", "p1", models.ProviderActor("p1"))

		if !IsInvalidTransition(err) {
			t.Errorf("expected InvalidTransition, got %v", err)
		}
	})

	t.Run("Given a provider outside the category When accepting Then InvalidTransition", func(t *testing.T) {
		f := newFixture(t, models.Provider{ID: "p7", CategoryIDs: []string{"other"}, Available: true})
		f.seed(t, confirmedUnassigned("b1", models.PaymentPaid))

		_, err := f.resolver.AssignProvider(ctx, "b1", "p7", models.ProviderActor("p7"))

		if !IsInvalidTransition(err) {
			t.Errorf("expected InvalidTransition, got %v", err)
		}
	})
}
