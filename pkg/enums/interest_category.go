package enums

import "fmt"

// InterestCategory is the closed set of follow-up interests a survey
// respondent can declare. "None" keeps the respondent in the raffle pool.
type InterestCategory string

const (
	InterestNone        InterestCategory = "None"
	InterestServices    InterestCategory = "Services"
	InterestPartnership InterestCategory = "Partnership"
	InterestCareers     InterestCategory = "Careers"
	InterestOther       InterestCategory = "Other"
)

var validInterestCategories = []InterestCategory{
	InterestNone,
	InterestServices,
	InterestPartnership,
	InterestCareers,
	InterestOther,
}

// IsValid reports whether the value is a known interest category.
func (c InterestCategory) IsValid() bool {
	for _, candidate := range validInterestCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// RaffleEligible reports whether a submission with this category enters the
// raffle.
func (c InterestCategory) RaffleEligible() bool {
	return c == InterestNone
}

// ParseInterestCategory converts raw input into InterestCategory.
func ParseInterestCategory(value string) (InterestCategory, error) {
	for _, candidate := range validInterestCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid interest category %q", value)
}
