package models

// Rubric is a topical section of the newsletter. The enumeration is closed:
// labels coming back from the reference corpus must parse into it.
type Rubric string

const (
	RubricAmenagement     Rubric = "Aménagement du territoire et urbanisme"
	RubricChangementsClim Rubric = "Changements climatiques"
	RubricDevDurable      Rubric = "Développement durable"
	RubricDevNordique     Rubric = "Développement nordique"
	RubricEau             Rubric = "Eau et domaine hydrique"
	RubricEnergie         Rubric = "Énergie"
	RubricEnergiesRenouv  Rubric = "Énergies renouvelables"
	RubricEvalEnviron     Rubric = "Évaluation environnementale"
	RubricBiodiversite    Rubric = "Biodiversité et espèces menacées"
	RubricForets          Rubric = "Forêts"
	RubricCarbone         Rubric = "Gaz à effet de serre et marché du carbone"
	RubricGouvernance     Rubric = "Gouvernance et gestion environnementale"
	RubricMatieresDang    Rubric = "Matières dangereuses et pesticides"
	RubricMatieresRes     Rubric = "Matières résiduelles"
	RubricMilieuxHumides  Rubric = "Milieux humides et hydriques"
	RubricMines           Rubric = "Mines et hydrocarbures"
	RubricPolitiques      Rubric = "Politiques publiques et législation"
	RubricQualiteAir      Rubric = "Qualité de l'air"
	RubricSols            Rubric = "Sols et terrains contaminés"
	RubricTransport       Rubric = "Transport et mobilité durable"

	// RubricAutre is the catch-all for irrelevant articles. Its label is
	// shared with RelevanceAutre; relevancy classification depends on the
	// two being textually identical.
	RubricAutre Rubric = "Autre"
)

// Rubrics enumerates all rubrics in newsletter section order, catch-all
// last.
var Rubrics = []Rubric{
	RubricAmenagement,
	RubricChangementsClim,
	RubricDevDurable,
	RubricDevNordique,
	RubricEau,
	RubricEnergie,
	RubricEnergiesRenouv,
	RubricEvalEnviron,
	RubricBiodiversite,
	RubricForets,
	RubricCarbone,
	RubricGouvernance,
	RubricMatieresDang,
	RubricMatieresRes,
	RubricMilieuxHumides,
	RubricMines,
	RubricPolitiques,
	RubricQualiteAir,
	RubricSols,
	RubricTransport,
	RubricAutre,
}

func (r Rubric) String() string {
	return string(r)
}

// ParseRubric maps a label string back to the enumeration.
func ParseRubric(label string) (Rubric, bool) {
	for _, r := range Rubrics {
		if string(r) == label {
			return r, true
		}
	}
	return "", false
}

// Relevance is the binary relevant/irrelevant decision.
type Relevance string

const (
	RelevancePertinent Relevance = "Pertinent"

	// RelevanceAutre shares its label with RubricAutre.
	RelevanceAutre Relevance = Relevance(RubricAutre)
)

func (r Relevance) String() string {
	return string(r)
}
