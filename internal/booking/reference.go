package booking

import (
    "context"
    "crypto/rand"
    "encoding/hex"
    "fmt"
    "strings"
    "time"
)

// referenceAttempts bounds the uniqueness-check loop.  With four random
// bytes a collision is already vanishingly rare.
const referenceAttempts = 5

// ReferenceChecker reports whether a booking reference is already
// taken.  *repository.BookingRepo satisfies it.
type ReferenceChecker interface {
    ReferenceExists(ctx context.Context, ref string) (bool, error)
}

// GenerateReference produces a human-readable booking reference of the
// form TRV-20260901-A3F0B1C2.  It retries on the off chance the random
// suffix collides with an existing booking.
func GenerateReference(ctx context.Context, checker ReferenceChecker, now time.Time) (string, error) {
    for i := 0; i < referenceAttempts; i++ {
        buf := make([]byte, 4)
        if _, err := rand.Read(buf); err != nil {
            return "", fmt.Errorf("generate booking reference: %w", err)
        }
        ref := fmt.Sprintf("TRV-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
        exists, err := checker.ReferenceExists(ctx, ref)
        if err != nil {
            return "", err
        }
        if !exists {
            return ref, nil
        }
    }
    return "", fmt.Errorf("generate booking reference: exhausted %d attempts", referenceAttempts)
}
