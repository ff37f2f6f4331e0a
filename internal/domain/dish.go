package domain

import "strings"

// Dish: позиция меню. Принадлежит каталогу блюд, заказы хранят только DishID.
type Dish struct {
	ID          int64  `json:"dishId" yaml:"id"`
	Category    string `json:"dishCategory" yaml:"category"`
	Name        string `json:"dishName" yaml:"name"`
	UnitPrice   int64  `json:"unitPrice" yaml:"unit_price"`
	Description string `json:"dishDesc" yaml:"description"`
}

// ValidateInvariants проверяет позицию меню перед загрузкой в каталог.
func (d *Dish) ValidateInvariants() []error {
	var errs []error

	if strings.TrimSpace(d.Category) == "" {
		errs = append(errs, ErrDishCategoryRequired)
	}
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, ErrDishNameRequired)
	}
	if d.UnitPrice <= 0 {
		errs = append(errs, ErrDishPriceInvalid)
	}
	if strings.TrimSpace(d.Description) == "" {
		errs = append(errs, ErrDishDescriptionRequired)
	}

	return errs
}
