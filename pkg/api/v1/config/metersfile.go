package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Meter is one monitored meter from configuration. SubscriptionID may be
// left empty and filled in from portal discovery.
type Meter struct {
	Number         string `yaml:"number"`
	SubscriptionID string `yaml:"subscriptionId"`
	Name           string `yaml:"name"`
}

type metersFile struct {
	Meters []Meter `yaml:"meters"`
}

// LoadMeters reads the multi meter YAML file.
func LoadMeters(path string) ([]Meter, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading meters file: %w", err)
	}

	var f metersFile
	err = yaml.Unmarshal(b, &f)
	if err != nil {
		return nil, fmt.Errorf("error parsing meters file %s: %w", path, err)
	}

	err = validateMeters(f.Meters)
	if err != nil {
		return nil, err
	}
	return f.Meters, nil
}

func validateMeters(meters []Meter) error {
	var errs []string
	if len(meters) == 0 {
		errs = append(errs, "meters file contains no meters")
	}
	for i, m := range meters {
		if m.Number == "" {
			errs = append(errs, fmt.Sprintf("meter %d: number is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid meters file: %s", strings.Join(errs, "; "))
	}
	return nil
}
