package geo

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Load returns the geography reference. An empty path yields the
// built-in reference; otherwise the YAML file at path replaces it
// entirely (no merging).
func Load(path string) (*Reference, error) {
	if path == "" {
		return DefaultReference(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: read reference %s", path)
	}

	var ref Reference
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, eris.Wrapf(err, "geo: parse reference %s", path)
	}

	if len(ref.Neighborhoods) == 0 && len(ref.Boroughs) == 0 {
		return nil, eris.Errorf("geo: reference %s defines no neighborhoods or boroughs", path)
	}

	return &ref, nil
}

// DefaultReference returns the built-in Boston and NYC reference data.
func DefaultReference() *Reference {
	neighborhoods := make(map[string]string, len(bostonNeighborhoods))
	for _, zn := range bostonNeighborhoods {
		neighborhoods[zn.zip] = zn.name
	}

	boroughs := make([]Borough, len(nycBoroughs))
	copy(boroughs, nycBoroughs)

	return &Reference{
		Neighborhoods: neighborhoods,
		Boroughs:      boroughs,
	}
}

var bostonNeighborhoods = []struct{ zip, name string }{
	{"02108", "Beacon Hill"},
	{"02109", "Financial District"},
	{"02110", "Financial District"},
	{"02111", "Chinatown"},
	{"02113", "North End"},
	{"02114", "West End"},
	{"02115", "Longwood"},
	{"02116", "Back Bay"},
	{"02118", "South End"},
	{"02119", "Roxbury"},
	{"02120", "Mission Hill"},
	{"02121", "Dorchester"},
	{"02122", "Dorchester"},
	{"02124", "Dorchester"},
	{"02125", "Dorchester"},
	{"02126", "Mattapan"},
	{"02127", "South Boston"},
	{"02128", "East Boston"},
	{"02129", "Charlestown"},
	{"02130", "Jamaica Plain"},
	{"02131", "Roslindale"},
	{"02132", "West Roxbury"},
	{"02134", "Allston"},
	{"02135", "Brighton"},
	{"02136", "Hyde Park"},
	{"02199", "Back Bay"},
	{"02210", "Seaport"},
	{"02215", "Fenway"},
}

var nycBoroughs = []Borough{
	{
		Name: "Manhattan",
		RealtorZips: []string{
			"10001", "10002", "10003", "10004", "10006", "10007", "10009", "10010",
			"10011", "10012", "10013", "10014", "10016", "10017", "10018", "10019",
			"10021", "10022", "10023", "10024", "10025", "10026", "10027", "10028",
			"10029", "10030", "10031", "10032", "10033", "10034", "10035", "10036",
			"10037", "10038", "10039", "10040", "10044", "10065", "10069", "10075",
			"10128", "10280",
		},
		RedfinZips: []string{
			"10001", "10002", "10003", "10004", "10006", "10007", "10009", "10010",
			"10011", "10012", "10013", "10014", "10016", "10017", "10018", "10019",
			"10021", "10022", "10023", "10024", "10025", "10026", "10027", "10028",
			"10029", "10030", "10031", "10032", "10033", "10034", "10035", "10036",
			"10037", "10038", "10039", "10040", "10044", "10065", "10069", "10075",
			"10128", "10280",
		},
	},
	{
		Name: "Staten Island",
		RealtorZips: []string{
			"10301", "10302", "10303", "10304", "10305", "10306", "10307", "10308",
			"10309", "10310", "10312", "10314",
		},
		RedfinZips: []string{"10301", "10304", "10305", "10306", "10308"},
	},
	{
		Name: "Bronx",
		RealtorZips: []string{
			"10451", "10453", "10454", "10455", "10456", "10457", "10458", "10459",
			"10460", "10461", "10462", "10463", "10464", "10465", "10466", "10467",
			"10468", "10469", "10470", "10471", "10472", "10473", "10475",
		},
		RedfinZips: []string{
			"10451", "10454", "10455", "10456", "10457", "10458", "10461", "10462",
			"10463", "10466", "10467", "10468", "10471", "10473",
		},
	},
	{
		Name: "Queens",
		RealtorZips: []string{
			"11004", "11101", "11102", "11103", "11104", "11105", "11106", "11354",
			"11355", "11356", "11357", "11358", "11360", "11361", "11362", "11363",
			"11364", "11365", "11366", "11367", "11368", "11369", "11370", "11372",
			"11373", "11374", "11375", "11377", "11378", "11379", "11385", "11411",
			"11412", "11413", "11414", "11415", "11416", "11417", "11418", "11419",
			"11420", "11421", "11422", "11423", "11426", "11427", "11428", "11429",
			"11432", "11433", "11434", "11435", "11436", "11691", "11692", "11693",
			"11694",
		},
		RedfinZips: []string{
			"11004", "11101", "11102", "11103", "11104", "11105", "11106", "11354",
			"11355", "11356", "11357", "11358", "11360", "11361", "11362", "11363",
			"11364", "11365", "11366", "11367", "11368", "11369", "11370", "11372",
			"11373", "11374", "11375", "11377", "11378", "11379", "11385", "11411",
			"11412", "11413", "11414", "11415", "11416", "11417", "11418", "11419",
			"11420", "11421", "11422", "11423", "11426", "11427", "11428", "11429",
			"11432", "11433", "11434", "11435", "11436", "11691", "11692", "11693",
			"11694",
		},
	},
	{
		Name: "Brooklyn",
		RealtorZips: []string{
			"11201", "11203", "11204", "11205", "11206", "11207", "11208", "11209",
			"11210", "11211", "11212", "11213", "11214", "11215", "11216", "11217",
			"11218", "11219", "11220", "11221", "11222", "11223", "11224", "11225",
			"11226", "11228", "11229", "11230", "11231", "11232", "11233", "11234",
			"11235", "11236", "11237", "11238", "11249",
		},
		RedfinZips: []string{
			"11201", "11203", "11205", "11206", "11207", "11208", "11209", "11211",
			"11212", "11214", "11215", "11216", "11217", "11218", "11220", "11221",
			"11222", "11224", "11225", "11226", "11228", "11229", "11230", "11231",
			"11233", "11234", "11235", "11237", "11238", "11249",
		},
	},
}
