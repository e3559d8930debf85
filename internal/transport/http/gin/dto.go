package httpgin

import (
	"time"

	"github.com/tably/tably-go/internal/domain"
)

type CreateHoldRequest struct {
	Date     string   `json:"date" binding:"required"`
	Time     string   `json:"time" binding:"required"`
	TableIDs []string `json:"table_ids" binding:"required,min=1,dive,required"`
}

type CreateHoldResponse struct {
	HoldID    string    `json:"hold_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ExtendHoldResponse struct {
	HoldID    string    `json:"hold_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type FinalizeReservationRequest struct {
	HoldID    string       `json:"hold_id" binding:"required,uuid"`
	PartySize int          `json:"party_size" binding:"required,gt=0"`
	Guest     domain.Guest `json:"guest" binding:"required"`
}

type UpsertTablesRequest struct {
	Tables []TableInput `json:"tables" binding:"required,min=1,dive"`
}

type TableInput struct {
	ID       string  `json:"id" binding:"required"`
	Label    string  `json:"label" binding:"required"`
	Capacity int     `json:"capacity" binding:"required,gte=1"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Zone     string  `json:"zone"`
	Active   *bool   `json:"active"`
}

type ErrorResponse struct {
	Error    string   `json:"error"`
	TableIDs []string `json:"table_ids,omitempty"`
}
