// Package service implements the PowerAuth server core: the activation
// lifecycle state machine, the signature verifier, recovery codes, tokens
// and the vault unlock path. All operations run inside repository
// transactions; results are plain values and typed errors that the API
// boundary renders into the wire envelope.
package service

import (
	"errors"
	"fmt"
)

// Code is a stable error code surfaced in responses.
type Code string

const (
	CodeNoUserID                   Code = "NO_USER_ID"
	CodeNoApplicationID            Code = "NO_APPLICATION_ID"
	CodeInvalidRequest             Code = "INVALID_REQUEST"
	CodeInvalidKeyFormat           Code = "INVALID_KEY_FORMAT"
	CodeActivationNotFound         Code = "ACTIVATION_NOT_FOUND"
	CodeActivationExpired          Code = "ACTIVATION_EXPIRED"
	CodeActivationIncorrectState   Code = "ACTIVATION_INCORRECT_STATE"
	CodeUnableToComputeSignature   Code = "UNABLE_TO_COMPUTE_SIGNATURE"
	CodeIncorrectMasterKeyPair     Code = "INCORRECT_MASTER_SERVER_KEYPAIR_PRIVATE"
	CodeNoMasterKeyPair            Code = "NO_MASTER_SERVER_KEYPAIR"
	CodeGenericCryptography        Code = "GENERIC_CRYPTOGRAPHY_ERROR"
	CodeUnableToGenerateActivation Code = "UNABLE_TO_GENERATE_ACTIVATION_ID"
	CodeUnableToGenerateCode       Code = "UNABLE_TO_GENERATE_SHORT_ACTIVATION_ID"
	CodeUnableToGenerateRecovery   Code = "UNABLE_TO_GENERATE_RECOVERY_CODE"
	CodeUnableToGenerateToken      Code = "UNABLE_TO_GENERATE_TOKEN"
	CodeInvalidRecoveryCode        Code = "INVALID_RECOVERY_CODE"
	CodeRecoveryCodeAlreadyExists  Code = "RECOVERY_CODE_ALREADY_EXISTS"
	CodeConcurrency                Code = "CONCURRENCY"
)

// Error is a service failure with a stable code. The API boundary maps it
// to the {status:"ERROR", responseError} envelope.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// E builds a service error.
func E(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// RecoveryError is a recovery-code failure that additionally carries the
// index of the currently valid PUK so clients can prompt for the right one.
type RecoveryError struct {
	Code            Code
	Message         string
	CurrentPUKIndex int
}

func (e *RecoveryError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// CodeOf extracts the stable code from any error returned by the service.
func CodeOf(err error) (Code, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	var re *RecoveryError
	if errors.As(err, &re) {
		return re.Code, true
	}
	if errors.Is(err, ErrConcurrency) {
		return CodeConcurrency, true
	}
	return "", false
}

// Store-level sentinels. The repository maps driver errors onto these so
// the core never inspects SQLSTATEs.
var (
	// ErrNotFound reports that a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate reports a unique-constraint violation.
	ErrDuplicate = errors.New("duplicate")
	// ErrConcurrency reports a row-lock wait timeout. Transient; callers
	// should retry.
	ErrConcurrency = errors.New("concurrency")
)

// ErrorListEntry describes one stable error code for getErrorCodeList.
type ErrorListEntry struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// ErrorCodeList enumerates every stable code the server can return.
func ErrorCodeList() []ErrorListEntry {
	return []ErrorListEntry{
		{CodeNoUserID, "User ID was not specified"},
		{CodeNoApplicationID, "Application ID was not specified"},
		{CodeInvalidRequest, "Request is invalid"},
		{CodeInvalidKeyFormat, "Key has an invalid format"},
		{CodeActivationNotFound, "Activation does not exist"},
		{CodeActivationExpired, "Activation expired"},
		{CodeActivationIncorrectState, "Activation is in an incorrect state"},
		{CodeUnableToComputeSignature, "Unable to compute signature"},
		{CodeIncorrectMasterKeyPair, "Master key pair private key is incorrect"},
		{CodeNoMasterKeyPair, "Application has no master key pair"},
		{CodeGenericCryptography, "Cryptography error"},
		{CodeUnableToGenerateActivation, "Unable to generate a unique activation ID"},
		{CodeUnableToGenerateCode, "Unable to generate a unique activation code"},
		{CodeUnableToGenerateRecovery, "Unable to generate a unique recovery code"},
		{CodeUnableToGenerateToken, "Unable to generate a unique token ID"},
		{CodeInvalidRecoveryCode, "Recovery code is invalid"},
		{CodeRecoveryCodeAlreadyExists, "Recovery code already exists"},
		{CodeConcurrency, "Operation timed out waiting for a row lock, retry"},
	}
}
