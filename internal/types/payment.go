package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PaymentMethodType identifies how a subscriber pays
type PaymentMethodType string

const (
	PaymentMethodTypeCard PaymentMethodType = "CARD"
)

// PaymentMethod is the payment instrument handed to the gateway. Token is the
// processor-side reference (card token or payment method id); the remaining
// fields are display data only.
type PaymentMethod struct {
	Token      string            `json:"token" validate:"required"`
	Type       PaymentMethodType `json:"type" validate:"omitempty,oneof=CARD"`
	Brand      string            `json:"brand,omitempty"`
	Last4      string            `json:"last4,omitempty" validate:"omitempty,len=4,numeric"`
	ExpMonth   int               `json:"exp_month,omitempty" validate:"omitempty,min=1,max=12"`
	ExpYear    int               `json:"exp_year,omitempty" validate:"omitempty,min=2000"`
	HolderName string            `json:"holder_name,omitempty"`
}

// Value implements driver.Valuer so the method can live in a jsonb column
func (p PaymentMethod) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner
func (p *PaymentMethod) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported payment method column type %T", value)
	}
	return json.Unmarshal(data, p)
}

// String masks the method for logs
func (p *PaymentMethod) String() string {
	if p == nil {
		return "<none>"
	}
	if p.Last4 != "" {
		return fmt.Sprintf("%s ****%s", p.Brand, p.Last4)
	}
	return string(p.Type)
}
