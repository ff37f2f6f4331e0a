package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// menuFile описывает формат YAML-файла с меню:
//
//	dishes:
//	  - id: 1
//	    category: pizza
//	    name: Margherita
//	    unit_price: 650
//	    description: tomato, mozzarella, basil
type menuFile struct {
	Dishes []domain.Dish `yaml:"dishes"`
}

// LoadMenu читает меню из YAML.
func LoadMenu(r io.Reader) ([]domain.Dish, error) {
	var file menuFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode menu: %w", err)
	}
	return file.Dishes, nil
}

// LoadMenuFile читает меню из файла.
func LoadMenuFile(path string) ([]domain.Dish, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open menu %s: %w", path, err)
	}
	defer f.Close()
	return LoadMenu(f)
}
