package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CategoryID int64

type Product struct {
	ID              ProductID
	Title           string
	Description     string
	Price           decimal.Decimal
	Stock           int
	DiscountPercent int
	CategoryID      *CategoryID
	Images          []string
	Characteristics []Characteristic

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Characteristic struct {
	Name  string
	Value string
}

type Category struct {
	ID   CategoryID
	Name string
}

// CartLine is a user's pending intent for one product. It is ephemeral:
// removed individually by the user or wholesale on checkout.
type CartLine struct {
	UserID    UserID
	ProductID ProductID
	Quantity  int
}

// DiscountedUnitPrice applies a percentage discount to a unit price and
// rounds to cents. All money math stays in fixed-point decimals.
func DiscountedUnitPrice(price decimal.Decimal, discountPercent int) decimal.Decimal {
	if discountPercent <= 0 {
		return price.Round(2)
	}
	factor := decimal.New(int64(100-discountPercent), -2)
	return price.Mul(factor).Round(2)
}

// EncodeImages validates an image list and returns its canonical JSON
// form for storage. Blank entries are rejected at write time.
func EncodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	for _, img := range images {
		if strings.TrimSpace(img) == "" {
			return "", ValidationError{Field: "images", Reason: "entries must be non-empty"}
		}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeImages parses a stored image list. Unparseable data reads as an
// empty list rather than leaking the raw value.
func DecodeImages(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	var images []string
	if err := json.Unmarshal([]byte(raw), &images); err != nil {
		return []string{}
	}
	if images == nil {
		return []string{}
	}
	return images
}
