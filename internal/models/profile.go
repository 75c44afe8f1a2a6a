// internal/models/profile.go
package models

type Sex string

const (
	Male   Sex = "Male"
	Female Sex = "Female"
)

type ActivityLevel string

const (
	Sedentary  ActivityLevel = "Sedentary"
	Light      ActivityLevel = "Light"
	Moderate   ActivityLevel = "Moderate"
	Active     ActivityLevel = "Active"
	VeryActive ActivityLevel = "Very Active"
)

type Goal string

const (
	LoseWeight Goal = "Lose Weight"
	Maintain   Goal = "Maintain"
	GainMuscle Goal = "Gain Muscle"
)

type Language string

const (
	Indonesian Language = "id"
	English    Language = "en"
)

type Theme string

const (
	Futuristic    Theme = "Futuristic"
	SimpleElegant Theme = "Simple Elegant"
	Modern        Theme = "Modern"
)

type UserProfile struct {
	Name                string        `json:"name"`
	Age                 int           `json:"age"`
	Sex                 Sex           `json:"sex"`
	Weight              float64       `json:"weight"` // kg
	Height              float64       `json:"height"` // cm
	Activity            ActivityLevel `json:"activity"`
	Goal                Goal          `json:"goal"`
	TDEE                int           `json:"tdee"`
	CustomCalorieTarget *int          `json:"custom_calorie_target,omitempty"`
	Language            Language      `json:"language"`
	Theme               Theme         `json:"theme"`
}

// DefaultProfile mirrors the profile a fresh session starts with. TDEE is
// left for the caller to compute.
func DefaultProfile() UserProfile {
	return UserProfile{
		Name:     "User",
		Age:      25,
		Sex:      Female,
		Weight:   60,
		Height:   165,
		Activity: Moderate,
		Goal:     Maintain,
		Language: Indonesian,
		Theme:    Futuristic,
	}
}

// TargetCalories is the energy target every consumer should use: the manual
// override when one is set, otherwise the computed TDEE.
func (p UserProfile) TargetCalories() int {
	if p.CustomCalorieTarget != nil && *p.CustomCalorieTarget > 0 {
		return *p.CustomCalorieTarget
	}
	return p.TDEE
}

func (p UserProfile) ReplyLanguage() string {
	if p.Language == Indonesian {
		return "Indonesian"
	}
	return "English"
}

func (s Sex) Valid() bool {
	return s == Male || s == Female
}

func (a ActivityLevel) Valid() bool {
	switch a {
	case Sedentary, Light, Moderate, Active, VeryActive:
		return true
	}
	return false
}

func (g Goal) Valid() bool {
	return g == LoseWeight || g == Maintain || g == GainMuscle
}

func (l Language) Valid() bool {
	return l == Indonesian || l == English
}

func (t Theme) Valid() bool {
	return t == Futuristic || t == SimpleElegant || t == Modern
}
