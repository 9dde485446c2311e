package pipeline

import (
	"github.com/couchcryptid/estuary-stats/internal/domain"
	"github.com/couchcryptid/estuary-stats/internal/stats"
)

// ModelPlan names one model to fit and the artifacts to draw from it.
type ModelPlan struct {
	Name string
	Spec stats.ModelSpec

	// Marginals are numeric predictors swept for marginal effect curves,
	// Levels are factor predictors plotted as per-level predictions.
	Marginals []string
	Levels    []string

	// Influence refits without high-influence rows and reports the
	// coefficient shifts.
	Influence bool
}

// DefaultSuite is the standing model set. Skewed responses are fitted
// two ways, Gaussian on the log scale and Gamma with a log link, so the
// reports show both side by side rather than settle the family choice.
// Station enters as a random intercept throughout; year enters as a
// fixed factor in the herring model and through sampling-event random
// intercepts in the Gamma zooplankton model, which keeps both readings
// of the design on the table.
func DefaultSuite() []ModelPlan {
	return []ModelPlan{
		{
			Name: "zoop_gaussian",
			Spec: stats.ModelSpec{
				Response:          domain.ColZoopDensity,
				ResponseTransform: stats.TransformLog,
				Family:            stats.FamilyGaussian,
				Link:              stats.LinkIdentity,
				Linear: []stats.Linear{
					{Name: domain.ColChlorophyll, Transform: domain.TransformFor(domain.ColChlorophyll)},
				},
				Factors: []stats.Factor{
					{Name: domain.ColSeason, Levels: domain.SeasonLevels()},
				},
				Smooths: []stats.Smooth{
					{Name: domain.ColSalinity},
					{Name: domain.ColDayOfYear},
				},
				Random: []stats.Random{
					{Name: domain.ColStation},
				},
			},
			Marginals: []string{domain.ColSalinity, domain.ColDayOfYear},
			Levels:    []string{domain.ColSeason},
			Influence: true,
		},
		{
			Name: "zoop_gamma",
			Spec: stats.ModelSpec{
				Response: domain.ColZoopDensity,
				Family:   stats.FamilyGamma,
				Link:     stats.LinkLog,
				Linear: []stats.Linear{
					{Name: domain.ColChlorophyll, Transform: domain.TransformFor(domain.ColChlorophyll)},
				},
				Smooths: []stats.Smooth{
					{Name: domain.ColSalinity},
				},
				Random: []stats.Random{
					{Name: domain.ColStation},
					{Name: domain.ColEvent},
				},
			},
			Marginals: []string{domain.ColSalinity},
		},
		{
			Name: "shannon_gamma",
			Spec: stats.ModelSpec{
				Response: domain.ColShannon,
				Family:   stats.FamilyGamma,
				Link:     stats.LinkLog,
				Factors: []stats.Factor{
					{Name: domain.ColSeason, Levels: domain.SeasonLevels()},
				},
				Smooths: []stats.Smooth{
					{Name: domain.ColSalinity},
				},
				Random: []stats.Random{
					{Name: domain.ColStation},
				},
			},
			Marginals: []string{domain.ColSalinity},
			Levels:    []string{domain.ColSeason},
		},
		{
			Name: "shannon_gaussian",
			Spec: stats.ModelSpec{
				Response: domain.ColShannon,
				Family:   stats.FamilyGaussian,
				Link:     stats.LinkIdentity,
				Factors: []stats.Factor{
					{Name: domain.ColSeason, Levels: domain.SeasonLevels()},
				},
				Smooths: []stats.Smooth{
					{Name: domain.ColSalinity},
				},
				Random: []stats.Random{
					{Name: domain.ColStation},
				},
			},
			Marginals: []string{domain.ColSalinity},
		},
		{
			Name: "herring_gaussian",
			Spec: stats.ModelSpec{
				Response:          domain.ColHerring,
				ResponseTransform: domain.TransformFor(domain.ColHerring),
				Family:            stats.FamilyGaussian,
				Link:              stats.LinkIdentity,
				Linear: []stats.Linear{
					{Name: domain.ColTurbidity, Transform: domain.TransformFor(domain.ColTurbidity)},
					{Name: domain.ColDOSat},
				},
				Factors: []stats.Factor{
					{Name: domain.ColSeason, Levels: domain.SeasonLevels()},
					{Name: domain.ColYearFactor},
				},
				Smooths: []stats.Smooth{
					{Name: domain.ColDayOfYear},
				},
				Random: []stats.Random{
					{Name: domain.ColStation},
				},
			},
			Marginals: []string{domain.ColTurbidity},
			Levels:    []string{domain.ColYearFactor},
		},
	}
}

// TaxaPlans fits each copepod taxon on the log1p scale with the shared
// seasonal structure. These feed the report table, not plots.
func TaxaPlans() []ModelPlan {
	taxa := domain.Taxa()
	plans := make([]ModelPlan, 0, len(taxa))
	for _, taxon := range taxa {
		plans = append(plans, ModelPlan{
			Name: "taxon_" + taxon,
			Spec: stats.ModelSpec{
				Response:          taxon,
				ResponseTransform: stats.TransformLog1p,
				Family:            stats.FamilyGaussian,
				Link:              stats.LinkIdentity,
				Factors: []stats.Factor{
					{Name: domain.ColSeason, Levels: domain.SeasonLevels()},
				},
				Smooths: []stats.Smooth{
					{Name: domain.ColDayOfYear},
				},
				Random: []stats.Random{
					{Name: domain.ColStation},
				},
			},
		})
	}
	return plans
}
