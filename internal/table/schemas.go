package table

// Predefined schemas for the three record kinds the system exchanges.
// These are fixed wire formats: callers constructing a repository must
// supply record sets matching one of them exactly (name, order, and type).

// GeneDisease is the denormalized gene-disease-publication association
// schema. No column is unique; duplicate associations are expected.
var GeneDisease = Schema{Columns: []Column{
	{Name: "digest", Type: String, Required: true},
	{Name: "genesymbol", Type: String},
	{Name: "geneid", Type: Int64, Required: true},
	{Name: "diseasename", Type: String},
	{Name: "diseaseid", Type: String, Required: true},
	{Name: "pmids", Type: String, Required: true},
}}

// Publication is the publication metadata schema keyed by PubMed id.
var Publication = Schema{Columns: []Column{
	{Name: "pmid", Type: Int64, Required: true},
	{Name: "date_completed", Type: String},
	{Name: "pub_model", Type: String},
	{Name: "title", Type: String},
	{Name: "iso_abbreviation", Type: String},
	{Name: "article_title", Type: String},
	{Name: "abstract", Type: String},
	{Name: "authors", Type: String},
	{Name: "language", Type: String},
	{Name: "chemicals", Type: String},
	{Name: "mesh_list", Type: String},
}}

// Score is the classifier output schema, keyed back to the association via
// digest.
var Score = Schema{Columns: []Column{
	{Name: "digest", Type: String, Required: true},
	{Name: "pub_score", Type: Float64, Required: true},
	{Name: "ct_score", Type: Float64, Required: true},
}}

// SchemaByName resolves a predefined schema from its CLI-facing name.
// It returns false for unknown names.
func SchemaByName(name string) (Schema, bool) {
	switch name {
	case "gene-disease":
		return GeneDisease, true
	case "publication":
		return Publication, true
	case "score":
		return Score, true
	default:
		return Schema{}, false
	}
}
