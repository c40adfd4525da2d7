package service

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"strings"

	"github.com/boddenberg/client-portal-go/internal/aggregate"
	"github.com/boddenberg/client-portal-go/internal/domain"
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &domain.ErrValidation{Field: field, Message: "required"}
	}
	return nil
}

func validEmail(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := mail.ParseAddress(value); err != nil {
		return &domain.ErrValidation{Field: field, Message: "must be a valid email address"}
	}
	return nil
}

func validDate(field, value string) error {
	if value == "" {
		return nil
	}
	if _, ok := aggregate.ParseDate(value); !ok {
		return &domain.ErrValidation{Field: field, Message: "must be a YYYY-MM-DD date"}
	}
	return nil
}

func validAmount(field string, v float64, allowZero bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || (!allowZero && v == 0) {
		msg := "must be a positive number"
		if allowZero {
			msg = "must be zero or more"
		}
		return &domain.ErrValidation{Field: field, Message: msg}
	}
	return nil
}

func validProgress(v int) error {
	if v < 0 || v > 100 {
		return &domain.ErrValidation{Field: "progress", Message: "must be between 0 and 100"}
	}
	return nil
}

func validURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &domain.ErrValidation{Field: field, Message: "must be an http(s) URL"}
	}
	return nil
}

// validListStatus checks a status filter against the known values.
func validListStatus(status string, known func(string) bool) error {
	if status == "" || status == aggregate.StatusAll || known(status) {
		return nil
	}
	return &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
