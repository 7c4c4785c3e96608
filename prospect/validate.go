package prospect

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hazyhaar/prospect/horosafe"
)

const (
	maxURLsPerCrawl = 100
	maxURLLen       = 4096
	maxTagLen       = 100
)

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateProfile checks the fields a ClientProfile must carry before it is
// stored: a safe tenant id, a valid email, non-empty industry and location,
// and campaign parameters that are empty or a JSON object.
func ValidateProfile(p *ClientProfile) error {
	if p == nil {
		return fmt.Errorf("%w: nil profile", ErrInvalidProfile)
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidProfile, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := horosafe.SafeName(p.TenantID); err != nil {
		return fmt.Errorf("%w: tenant_id: %v", ErrInvalidProfile, err)
	}
	if len(p.CampaignParameters) > 0 {
		var obj map[string]any
		if err := json.Unmarshal(p.CampaignParameters, &obj); err != nil {
			return fmt.Errorf("%w: campaign_parameters must be a JSON object", ErrInvalidProfile)
		}
	}
	return nil
}

// ValidateEmail reports whether s is a syntactically valid email address.
func ValidateEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

func validateTenant(tenantID string) error {
	if err := horosafe.SafeName(tenantID); err != nil {
		return fmt.Errorf("%w: tenant_id: %v", ErrInvalidInput, err)
	}
	return nil
}

func validateCrawl(urls, tags []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("%w: at least one url is required", ErrInvalidInput)
	}
	if len(urls) > maxURLsPerCrawl {
		return fmt.Errorf("%w: at most %d urls per crawl", ErrInvalidInput, maxURLsPerCrawl)
	}
	for _, u := range urls {
		if u == "" || len(u) > maxURLLen {
			return fmt.Errorf("%w: url must be 1..%d characters", ErrInvalidInput, maxURLLen)
		}
	}
	for _, t := range tags {
		if len(t) > maxTagLen {
			return fmt.Errorf("%w: tag exceeds %d characters", ErrInvalidInput, maxTagLen)
		}
	}
	return nil
}
