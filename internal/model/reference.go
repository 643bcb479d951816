package model

// Doctor is a selectable primary physician.
type Doctor struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

var GenderOptions = []string{GenderMale, GenderFemale, GenderOther}

const DefaultIdentificationType = "Birth Certificate"

var IdentificationTypes = []string{
	"Birth Certificate",
	"Driver's License",
	"Medical Insurance Card/Policy",
	"Military ID Card",
	"National Identity Card",
	"Passport",
	"Resident Alien Card (Green Card)",
	"Social Security Card",
	"State ID Card",
	"Student ID Card",
	"Voter ID Card",
}

var Doctors = []Doctor{
	{Name: "John Green", Image: "/assets/images/dr-green.png"},
	{Name: "Leila Cameron", Image: "/assets/images/dr-cameron.png"},
	{Name: "David Livingston", Image: "/assets/images/dr-livingston.png"},
	{Name: "Evan Peter", Image: "/assets/images/dr-peter.png"},
	{Name: "Jane Powell", Image: "/assets/images/dr-powell.png"},
	{Name: "Alex Ramirez", Image: "/assets/images/dr-remirez.png"},
	{Name: "Jasmine Lee", Image: "/assets/images/dr-lee.png"},
	{Name: "Alyana Cruz", Image: "/assets/images/dr-cruz.png"},
	{Name: "Hardik Sharma", Image: "/assets/images/dr-sharma.png"},
}

// ReferenceData groups the selectable options offered by the registration form.
type ReferenceData struct {
	GenderOptions       []string `json:"gender_options"`
	IdentificationTypes []string `json:"identification_types"`
	Doctors             []Doctor `json:"doctors"`
}

func NewReferenceData() *ReferenceData {
	return &ReferenceData{
		GenderOptions:       GenderOptions,
		IdentificationTypes: IdentificationTypes,
		Doctors:             Doctors,
	}
}

func IsGender(s string) bool {
	return contains(GenderOptions, s)
}

func IsIdentificationType(s string) bool {
	return contains(IdentificationTypes, s)
}

func IsPhysician(name string) bool {
	for _, d := range Doctors {
		if d.Name == name {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
