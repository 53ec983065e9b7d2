package leaveerrors

import (
	"net/http"

	"leavedesk/internal/shared/apperror"
)

var (
	ErrInvalidEmployeeID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid employee id",
		http.StatusBadRequest,
	)
	ErrInvalidLeaveID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid leave id",
		http.StatusBadRequest,
	)
	ErrInvalidCategory = apperror.New(
		apperror.CodeInvalidInput,
		"invalid leave category",
		http.StatusBadRequest,
	)
	ErrReasonRequired = apperror.New(
		apperror.CodeInvalidInput,
		"reason is required",
		http.StatusBadRequest,
	)
	ErrPhoneRequired = apperror.New(
		apperror.CodeInvalidInput,
		"phone_during_leave is required",
		http.StatusBadRequest,
	)
	ErrBackupPersonRequired = apperror.New(
		apperror.CodeInvalidInput,
		"backup person name and contact are required",
		http.StatusBadRequest,
	)
	ErrPolicyNotAcknowledged = apperror.New(
		apperror.CodeInvalidInput,
		"leave policy must be acknowledged",
		http.StatusBadRequest,
	)
	ErrInvalidDateFormat = apperror.New(
		apperror.CodeInvalidInput,
		"invalid date format, expected YYYY-MM-DD",
		http.StatusBadRequest,
	)
	ErrInvalidDateRange = apperror.New(
		apperror.CodeInvalidInput,
		"end date cannot be before start date",
		http.StatusBadRequest,
	)
	ErrStartDateInPast = apperror.New(
		apperror.CodeInvalidInput,
		"start date cannot be in the past",
		http.StatusBadRequest,
	)
	ErrLeaveOverlap = apperror.New(
		apperror.CodeConflict,
		"you already have a leave request for these dates",
		http.StatusConflict,
	)
	ErrInsufficientBalance = apperror.New(
		apperror.CodeConflict,
		"insufficient leave balance for this category",
		http.StatusConflict,
	)
	ErrLeaveNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave request not found",
		http.StatusNotFound,
	)
	ErrBalanceNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave balance not found for this category",
		http.StatusNotFound,
	)
	ErrNotPending = apperror.New(
		apperror.CodeInvalidState,
		"leave request has already been decided",
		http.StatusBadRequest,
	)
	ErrNotCancellable = apperror.New(
		apperror.CodeInvalidState,
		"this leave request cannot be cancelled",
		http.StatusBadRequest,
	)
	ErrRejectionReasonRequired = apperror.New(
		apperror.CodeInvalidInput,
		"remarks are required when rejecting",
		http.StatusBadRequest,
	)
	ErrCancellationReasonRequired = apperror.New(
		apperror.CodeInvalidInput,
		"cancellation reason is required",
		http.StatusBadRequest,
	)
)
