package captcha

import (
	"errors"
	"fmt"
	"strings"
)

// errorCode values shared by the createTask/getTaskResult providers.
const (
	codeZeroBalance  = "ERROR_ZERO_BALANCE"
	codeNoSlot       = "ERROR_NO_SLOT_AVAILABLE"
	codeTaskNotFound = "ERROR_TASK_NOT_FOUND"
	codeTaskAborted  = "ERROR_TASK_ABORTED"
	codeTaskCanceled = "ERROR_TASK_CANCELED"
	codeUnsolvable   = "ERROR_CAPTCHA_UNSOLVABLE"
)

var (
	ErrZeroBalance   = errors.New("captcha solver zero balance")
	ErrNoCredit      = errors.New("captcha solver credit exhausted")
	ErrPollExhausted = errors.New("captcha result polling exhausted")
	ErrEmptyToken    = errors.New("captcha solver returned empty token")
	ErrTaskFailed    = errors.New("captcha task failed")
)

// codeError maps a provider errorCode to an error. Zero balance and dead
// tasks get sentinels so the chain can react to them.
func codeError(provider, stage, code, desc string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	detail := code
	if desc != "" {
		detail += " - " + desc
	}
	switch code {
	case codeZeroBalance:
		return ErrZeroBalance
	case codeTaskNotFound, codeTaskAborted, codeTaskCanceled, codeUnsolvable:
		return fmt.Errorf("%s %s: %s: %w", provider, stage, detail, ErrTaskFailed)
	}
	return fmt.Errorf("%s %s error: %s", provider, stage, detail)
}

// transientCode reports codes after which getTaskResult is worth retrying.
func transientCode(code string) bool {
	return strings.EqualFold(strings.TrimSpace(code), codeNoSlot)
}
