package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"carbon-ledger/backend/internal/accrual"
)

// evidenceHash returns a deterministic SHA-256 digest over the accrual inputs,
// hex-encoded. The same device and window always hash the same, so a mint
// created twice for one window is detectable by its evidence alone.
func evidenceHash(deviceID string, start, end time.Time, res *accrual.Result) string {
	var b strings.Builder
	b.WriteString(deviceID)
	b.WriteByte('|')
	b.WriteString(start.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(end.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(res.CO2Reduced.String())
	b.WriteByte('|')
	b.WriteString(res.EnergySaved.String())
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(res.SamplesUsed))
	h := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(h[:])
}
