package record

import "encoding/json"

// Generic is a free-form password entry.
type Generic struct {
	Common
	Name     string `json:"name,omitempty"`
	Login    string `json:"login,omitempty"`
	Password string `json:"password"`
	Notes    string `json:"notes,omitempty"`
}

// RecordType implements Record.
func (*Generic) RecordType() Type { return TypeGeneric }

func (g *Generic) validate() error {
	if err := g.Common.validate(); err != nil {
		return err
	}
	if g.Password == "" {
		return missing("password")
	}
	return nil
}

// MarshalJSON emits the record with its type tag.
func (g Generic) MarshalJSON() ([]byte, error) {
	type alias Generic
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeGeneric, alias(g)})
}

// WiFi holds the credentials of a wireless network.
type WiFi struct {
	Common
	SSID         string `json:"ssid"`
	Password     string `json:"password"`
	SecurityType string `json:"securityType,omitempty"`
}

// RecordType implements Record.
func (*WiFi) RecordType() Type { return TypeWiFi }

func (w *WiFi) validate() error {
	if err := w.Common.validate(); err != nil {
		return err
	}
	if w.SSID == "" {
		return missing("ssid")
	}
	if w.Password == "" {
		return missing("password")
	}
	return nil
}

// MarshalJSON emits the record with its type tag.
func (w WiFi) MarshalJSON() ([]byte, error) {
	type alias WiFi
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeWiFi, alias(w)})
}

// BankCard holds payment card details.
type BankCard struct {
	Common
	CardNumber     string `json:"cardNumber"`
	ExpirationDate string `json:"expirationDate,omitempty"`
	CVV            string `json:"cvv,omitempty"`
	OwnerName      string `json:"ownerName,omitempty"`
	BankName       string `json:"bankName,omitempty"`
}

// RecordType implements Record.
func (*BankCard) RecordType() Type { return TypeBankCard }

func (c *BankCard) validate() error {
	if err := c.Common.validate(); err != nil {
		return err
	}
	if c.CardNumber == "" {
		return missing("cardNumber")
	}
	return nil
}

// MarshalJSON emits the record with its type tag.
func (c BankCard) MarshalJSON() ([]byte, error) {
	type alias BankCard
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeBankCard, alias(c)})
}

// BankAccount holds bank account coordinates.
type BankAccount struct {
	Common
	BankName      string `json:"bankName,omitempty"`
	AccountNumber string `json:"accountNumber"`
	OwnerName     string `json:"ownerName,omitempty"`
	IBAN          string `json:"iban,omitempty"`
	SWIFT         string `json:"swift,omitempty"`
}

// RecordType implements Record.
func (*BankAccount) RecordType() Type { return TypeBankAccount }

func (a *BankAccount) validate() error {
	if err := a.Common.validate(); err != nil {
		return err
	}
	if a.AccountNumber == "" {
		return missing("accountNumber")
	}
	return nil
}

// MarshalJSON emits the record with its type tag.
func (a BankAccount) MarshalJSON() ([]byte, error) {
	type alias BankAccount
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeBankAccount, alias(a)})
}

// Account holds the login for an online service.
type Account struct {
	Common
	ServiceName string `json:"serviceName,omitempty"`
	Login       string `json:"login"`
	Password    string `json:"password"`
}

// RecordType implements Record.
func (*Account) RecordType() Type { return TypeAccount }

func (a *Account) validate() error {
	if err := a.Common.validate(); err != nil {
		return err
	}
	if a.Login == "" {
		return missing("login")
	}
	if a.Password == "" {
		return missing("password")
	}
	return nil
}

// MarshalJSON emits the record with its type tag.
func (a Account) MarshalJSON() ([]byte, error) {
	type alias Account
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeAccount, alias(a)})
}
