package points

import (
	"errors"
	"math"
	"strings"

	"recycle-rewards/internal/model"
)

var (
	ErrUnknownWasteType = errors.New("unknown waste type")
	ErrInvalidWeight    = errors.New("weight must be greater than 0")
)

// PointsPerRupee is the fixed exchange rate for redemptions.
const PointsPerRupee = 10

// Multipliers maps each accepted waste type to its points-per-kilogram rate.
var Multipliers = map[model.WasteType]int{
	model.Plastic:    5,
	model.Metal:      10,
	model.Organic:    2,
	model.Paper:      3,
	model.Glass:      7,
	model.Electronic: 15,
}

// allowed keeps the fixed order used in validation error messages.
var allowed = []model.WasteType{
	model.Plastic, model.Metal, model.Organic,
	model.Paper, model.Glass, model.Electronic,
}

// AllowedTypes returns the accepted waste types as a comma-joined list.
func AllowedTypes() string {
	names := make([]string, len(allowed))
	for i, t := range allowed {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// Calculate returns the points awarded for disposing weight kilograms of the
// given waste type, rounded to the nearest integer. A waste type outside the
// multiplier table is rejected, never defaulted.
func Calculate(wasteType model.WasteType, weight float64) (int, error) {
	mult, ok := Multipliers[wasteType]
	if !ok {
		return 0, ErrUnknownWasteType
	}
	if weight <= 0 {
		return 0, ErrInvalidWeight
	}
	return int(math.Round(weight * float64(mult))), nil
}

// ForRupees returns the points required to redeem the given rupee amount,
// rounded up.
func ForRupees(amountRupees float64) int {
	return int(math.Ceil(amountRupees * PointsPerRupee))
}
