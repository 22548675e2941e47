package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/grachmannico95/wallet-webhook/internal/domain"
	"github.com/shopspring/decimal"
)

type AmountUnit string

const (
	AmountUnitMinor AmountUnit = "minor"
	AmountUnitMajor AmountUnit = "major"
)

const placeholder = "-"

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// Provider field aliases, first non-empty wins.
var (
	idAliases      = []string{"transaction_id", "id", "txn_id", "reference"}
	eventAliases   = []string{"event_type", "event", "type"}
	amountAliases  = []string{"amount", "total"}
	nameAliases    = []string{"sender_name", "owner_name", "name"}
	contactAliases = []string{"sender_mobile", "sender_phone", "mobile", "phone"}
	bankAliases    = []string{"channel", "bank", "bank_code"}
	timeAliases    = []string{"received_time", "time", "created_at", "transaction_date"}
)

var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

type NormalizerConfig struct {
	AmountUnit AmountUnit
	// ProviderLocation applies to provider times that carry no offset.
	ProviderLocation *time.Location
	// DisplayLocation decides the business date of a record.
	DisplayLocation *time.Location
}

type Normalizer struct {
	amountUnit  AmountUnit
	providerLoc *time.Location
	displayLoc  *time.Location
}

func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	n := &Normalizer{
		amountUnit:  cfg.AmountUnit,
		providerLoc: cfg.ProviderLocation,
		displayLoc:  cfg.DisplayLocation,
	}
	if n.amountUnit == "" {
		n.amountUnit = AmountUnitMinor
	}
	if n.providerLoc == nil {
		n.providerLoc = time.UTC
	}
	if n.displayLoc == nil {
		n.displayLoc = time.UTC
	}
	return n
}

// Normalize maps a provider payload onto a new transaction record.
func (n *Normalizer) Normalize(p Payload, now time.Time) (domain.Transaction, error) {
	amount, err := n.parseAmount(p)
	if err != nil {
		return domain.Transaction{}, err
	}

	id := firstString(p, idAliases)
	if id == "" {
		id, err = syntheticID(p)
		if err != nil {
			return domain.Transaction{}, err
		}
	}

	receivedAt := n.parseTime(firstString(p, timeAliases), now)

	return domain.Transaction{
		ID:           id,
		Event:        firstString(p, eventAliases),
		Amount:       amount,
		Name:         orPlaceholder(firstString(p, nameAliases)),
		Contact:      orPlaceholder(firstString(p, contactAliases)),
		Bank:         firstString(p, bankAliases),
		Status:       domain.TransactionStatusNew,
		ReceivedAt:   receivedAt,
		BusinessDate: receivedAt.In(n.displayLoc).Format("2006-01-02"),
		CreatedAt:    now,
	}, nil
}

func (n *Normalizer) parseAmount(p Payload) (int64, error) {
	raw := firstString(p, amountAliases)
	if raw == "" {
		return 0, fmt.Errorf("%w: amount is required", domain.ErrInvalidPayload)
	}

	value, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a number", domain.ErrInvalidPayload, raw)
	}

	switch n.amountUnit {
	case AmountUnitMinor:
	case AmountUnitMajor:
		value = value.Shift(2)
	default:
		return 0, fmt.Errorf("unknown amount unit %q", n.amountUnit)
	}

	if value.IsNegative() {
		return 0, fmt.Errorf("%w: amount must not be negative", domain.ErrInvalidPayload)
	}
	if !value.Equal(value.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount %q has more precision than the minor unit", domain.ErrInvalidPayload, raw)
	}

	if value.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: amount %q is out of range", domain.ErrInvalidPayload, raw)
	}

	return value.IntPart(), nil
}

func (n *Normalizer) parseTime(raw string, now time.Time) time.Time {
	if raw == "" {
		return now
	}

	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if secs > 1e12 {
			return time.UnixMilli(secs)
		}
		return time.Unix(secs, 0)
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}

	naive := raw
	if len(naive) > 19 {
		naive = naive[:19]
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, naive, n.providerLoc); err == nil {
			return t
		}
	}

	return now
}

// syntheticID derives a stable id from the payload so retried deliveries
// without an id still collapse onto one record.
func syntheticID(p Payload) (string, error) {
	canonical, err := json.Marshal(map[string]interface{}(p))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	sum := sha256.Sum256(canonical)
	return "TX" + strings.ToUpper(hex.EncodeToString(sum[:])[:16]), nil
}

func firstString(p Payload, aliases []string) string {
	for _, key := range aliases {
		if s := stringify(p[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(value)
	case json.Number:
		return value.String()
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(value, 10)
	case int:
		return strconv.Itoa(value)
	case bool:
		return strconv.FormatBool(value)
	default:
		return ""
	}
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
