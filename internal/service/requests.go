package service

import (
	"math"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type CredentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func ValidateCredentialsRequest(req *CredentialsRequest) error {
	return validate.Struct(req)
}

type StartLapRequest struct {
	// HourlyRate arrives as text from the settings form; it is parsed and
	// rejected here instead of letting garbage flow into amounts.
	HourlyRate string `json:"hourly_rate" validate:"omitempty"`
}

type LapEditRequest struct {
	WorkDone *string `json:"work_done,omitempty"`
	Hours    *int    `json:"hours,omitempty" validate:"omitempty,gte=0"`
	Minutes  *int    `json:"minutes,omitempty" validate:"omitempty,gte=0,lte=59"`
	Seconds  *int    `json:"seconds,omitempty" validate:"omitempty,gte=0,lte=59"`
	IsBreak  *bool   `json:"is_break,omitempty"`
}

func ValidateLapEditRequest(req *LapEditRequest) error {
	return validate.Struct(req)
}

type MergeRequest struct {
	LapID1 string `json:"lap_id_1" validate:"required"`
	LapID2 string `json:"lap_id_2" validate:"required"`
}

func ValidateMergeRequest(req *MergeRequest) error {
	return validate.Struct(req)
}

type StopSessionRequest struct {
	SessionName string `json:"session_name" validate:"omitempty,max=128"`
	Description string `json:"description" validate:"omitempty,max=1024"`
}

func ValidateStopSessionRequest(req *StopSessionRequest) error {
	return validate.Struct(req)
}

type RenameSessionRequest struct {
	SessionName string `json:"session_name" validate:"required,max=128"`
	Description string `json:"description" validate:"omitempty,max=1024"`
}

func ValidateRenameSessionRequest(req *RenameSessionRequest) error {
	return validate.Struct(req)
}

// ParseHourlyRate turns form input into a usable rate. Non-numeric or
// negative input is an error, not a NaN that leaks into amount displays.
func ParseHourlyRate(raw string) (float64, error) {
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, strconv.ErrRange
	}
	return rate, nil
}
