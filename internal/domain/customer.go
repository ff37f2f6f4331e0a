package domain

import (
	"net/mail"
	"strings"
	"time"
)

const (
	maxNameLength     = 100
	minPasscodeLength = 6
	phoneDigits       = 10
)

// Customer: учётная запись клиента. PasscodeHash наружу не отдаётся.
type Customer struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	PhoneNumber  string
	Address      string
	City         string
	State        string
	ZipCode      string
	PasscodeHash []byte
	CreatedAt    time.Time
}

// CustomerProfile: внешняя проекция клиента без секретных полей.
type CustomerProfile struct {
	ID          int64
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Address     string
	City        string
	State       string
	ZipCode     string
	CreatedAt   time.Time
}

// Profile строит проекцию клиента для ответов API.
func (c Customer) Profile() CustomerProfile {
	return CustomerProfile{
		ID:          c.ID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		Address:     c.Address,
		City:        c.City,
		State:       c.State,
		ZipCode:     c.ZipCode,
		CreatedAt:   c.CreatedAt,
	}
}

// CustomerRegistration: входные данные регистрации клиента.
type CustomerRegistration struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Address     string
	City        string
	State       string
	ZipCode     string
	Passcode    string
}

// Normalize убирает лишние пробелы и приводит email к нижнему регистру.
func (r CustomerRegistration) Normalize() CustomerRegistration {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.State = strings.TrimSpace(r.State)
	r.ZipCode = strings.TrimSpace(r.ZipCode)
	return r
}

// Validate проверяет поля регистрации и возвращает список замечаний.
func (r CustomerRegistration) Validate() []error {
	var errs []error

	if r.FirstName == "" {
		errs = append(errs, ErrFirstNameRequired)
	} else if len([]rune(r.FirstName)) > maxNameLength {
		errs = append(errs, ErrFirstNameTooLong)
	}
	if r.LastName == "" {
		errs = append(errs, ErrLastNameRequired)
	}
	if r.Email == "" {
		errs = append(errs, ErrEmailRequired)
	} else if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		errs = append(errs, ErrEmailInvalid)
	}
	if !validPhone(r.PhoneNumber) {
		errs = append(errs, ErrPhoneInvalid)
	}
	if r.Address == "" {
		errs = append(errs, ErrAddressRequired)
	}
	if r.City == "" {
		errs = append(errs, ErrCityRequired)
	}
	if r.State == "" {
		errs = append(errs, ErrStateRequired)
	}
	if r.ZipCode == "" {
		errs = append(errs, ErrZipCodeRequired)
	}
	if len(r.Passcode) < minPasscodeLength {
		errs = append(errs, ErrPasscodeTooShort)
	}

	return errs
}

// validPhone принимает ровно десять цифр без ведущего нуля.
func validPhone(phone string) bool {
	if len(phone) != phoneDigits || phone[0] == '0' {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
