package checkout

import (
    "fmt"
    "strings"
    "time"

    "github.com/voyago/booking-core/internal/model"
)

// validateTravelerPayload checks the traveler step's input against the
// cart.  It never stops at the first problem: every offending field is
// collected so the caller can surface them together.  An empty return
// slice means the payload is acceptable.
func validateTravelerPayload(cart *model.Cart, p *model.TravelerPayload) []FieldError {
    var errs []FieldError

    required := cart.RequiredTravelers()
    if required == 0 {
        // Hotels and cars carry no per-person documents but every
        // booking still needs a lead traveler.
        required = 1
    }
    if uint32(len(p.Travelers)) != required {
        errs = append(errs, FieldError{
            Field:   "travelers",
            Message: fmt.Sprintf("expected %d traveler(s) for this cart, got %d", required, len(p.Travelers)),
        })
    }

    for i, t := range p.Travelers {
        prefix := fmt.Sprintf("travelers[%d].", i)
        if strings.TrimSpace(t.FirstName) == "" {
            errs = append(errs, FieldError{Field: prefix + "first_name", Message: "first name is required"})
        }
        if strings.TrimSpace(t.LastName) == "" {
            errs = append(errs, FieldError{Field: prefix + "last_name", Message: "last name is required"})
        }
        if t.DateOfBirth != "" {
            if _, err := time.Parse("2006-01-02", t.DateOfBirth); err != nil {
                errs = append(errs, FieldError{Field: prefix + "date_of_birth", Message: "must be YYYY-MM-DD"})
            }
        }
    }

    email := strings.TrimSpace(p.Contact.Email)
    if email == "" {
        errs = append(errs, FieldError{Field: "contact.email", Message: "contact email is required"})
    } else if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
        errs = append(errs, FieldError{Field: "contact.email", Message: "contact email is invalid"})
    }

    if p.Billing != nil {
        if strings.TrimSpace(p.Billing.Country) == "" {
            errs = append(errs, FieldError{Field: "billing.country", Message: "billing country is required"})
        }
        if strings.TrimSpace(p.Billing.AddressLine1) == "" {
            errs = append(errs, FieldError{Field: "billing.address_line1", Message: "billing address is required"})
        }
    }

    return errs
}
