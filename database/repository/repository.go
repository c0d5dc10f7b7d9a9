package repository

import (
	bookingRepo "fieldhand/database/repository/booking"
	categoryRepo "fieldhand/database/repository/category"
	providerRepo "fieldhand/database/repository/provider"
)

// Re-export the BookingRepository interface and constructors.
type BookingRepository = bookingRepo.BookingRepository

var (
	NewMongoBookingRepo  = bookingRepo.NewMongoBookingRepo
	NewMemoryBookingRepo = bookingRepo.NewMemoryBookingRepo
)

// Re-export the CategoryRepository interface and constructors.
type CategoryRepository = categoryRepo.CategoryRepository

var (
	NewMongoCategoryRepo  = categoryRepo.NewMongoCategoryRepo
	NewCachedCategoryRepo = categoryRepo.NewCachedCategoryRepo
	NewMemoryCategoryRepo = categoryRepo.NewMemoryCategoryRepo
)

// Re-export the ProviderRepository interface and constructors.
type ProviderRepository = providerRepo.ProviderRepository

var (
	NewMongoProviderRepo  = providerRepo.NewMongoProviderRepo
	NewMemoryProviderRepo = providerRepo.NewMemoryProviderRepo
)
