package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type AddressUsecase struct {
	addresses repo.AddressRepository
}

func NewAddressUsecase(addresses repo.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addresses: addresses}
}

type UpsertAddressInput struct {
	PostalCode string
	Country    string
	State      string
	City       string
	Line1      string
	Line2      string
	Name       string
	Phone      string
	IsDefault  bool
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]model.Address, error) {
	if userID <= 0 {
		return []model.Address{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	items, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return []model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return items, nil
}

func (u *AddressUsecase) Create(ctx context.Context, userID int64, in UpsertAddressInput) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := validateAddress(in); err != nil {
		return model.Address{}, err
	}

	addr := model.Address{
		UserID:     userID,
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(in.Country)),
		State:      strings.TrimSpace(in.State),
		City:       strings.TrimSpace(in.City),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
		Name:       strings.TrimSpace(in.Name),
		Phone:      strings.TrimSpace(in.Phone),
		IsDefault:  in.IsDefault,
	}
	id, err := u.addresses.Create(ctx, addr)
	if err != nil {
		return model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	addr.ID = id
	return addr, nil
}

func (u *AddressUsecase) Update(ctx context.Context, userID int64, addressID int64, in UpsertAddressInput) (model.Address, error) {
	if userID <= 0 {
		return model.Address{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if addressID <= 0 {
		return model.Address{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := validateAddress(in); err != nil {
		return model.Address{}, err
	}

	existing, err := u.addresses.FindByID(ctx, addressID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Address{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if existing.UserID != userID {
		return model.Address{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}

	addr := model.Address{
		ID:         addressID,
		UserID:     userID,
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(in.Country)),
		State:      strings.TrimSpace(in.State),
		City:       strings.TrimSpace(in.City),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
		Name:       strings.TrimSpace(in.Name),
		Phone:      strings.TrimSpace(in.Phone),
		IsDefault:  in.IsDefault,
	}
	if err := u.addresses.Update(ctx, addr); err != nil {
		return model.Address{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return addr, nil
}

func (u *AddressUsecase) Delete(ctx context.Context, userID int64, addressID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if addressID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	existing, err := u.addresses.FindByID(ctx, addressID)
	if errors.Is(err, repo.ErrNotFound) {
		return NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if existing.UserID != userID {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}

	if err := u.addresses.Delete(ctx, addressID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return nil
}

func validateAddress(in UpsertAddressInput) error {
	if strings.TrimSpace(in.PostalCode) == "" {
		return NewHTTPError(http.StatusBadRequest, "postal_code is required")
	}
	if strings.TrimSpace(in.City) == "" {
		return NewHTTPError(http.StatusBadRequest, "city is required")
	}
	if strings.TrimSpace(in.Line1) == "" {
		return NewHTTPError(http.StatusBadRequest, "line1 is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return NewHTTPError(http.StatusBadRequest, "name is required")
	}
	return nil
}
