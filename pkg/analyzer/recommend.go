package analyzer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/cuttingtool/toolinspect/pkg/types"
)

// NoRecommendations is returned when the model answers with nothing.
const NoRecommendations = "No recommendations available."

var ErrIncompleteProfile = errors.New("workpiece material and target outcome are required")

// WorkpieceProfile describes what the tool is meant to cut and how.
type WorkpieceProfile struct {
	Material            string `json:"material"`
	Outcome             string `json:"outcome"`
	Hardness            string `json:"hardness,omitempty"`
	Ductility           string `json:"ductility,omitempty"`
	ThermalConductivity string `json:"thermalConductivity,omitempty"`
}

func (p WorkpieceProfile) validate() error {
	if strings.TrimSpace(p.Material) == "" || strings.TrimSpace(p.Outcome) == "" {
		return ErrIncompleteProfile
	}
	return nil
}

// RecommendationPrompt builds the engineering prompt for results and p.
func RecommendationPrompt(results []types.AngleMeasurement, p WorkpieceProfile) string {
	var b strings.Builder

	b.WriteString("You are an expert manufacturing engineer.\n")
	b.WriteString("Based on the following tool geometry analysis and material properties, ")
	b.WriteString("provide specific design recommendations to achieve the desired machining outcome.\n\n")

	b.WriteString("Tool Analysis:\n")
	for _, r := range results {
		verdict := "Non-Compliant"
		if r.IsCompliant {
			verdict = "Compliant"
		}
		fmt.Fprintf(&b, "%s: %s° (%s)\n", r.AngleName, strconv.FormatFloat(r.MeasuredValue, 'f', -1, 64), verdict)
	}

	fmt.Fprintf(&b, "\nWorkpiece Material: %s\n", p.Material)
	fmt.Fprintf(&b, "Target Outcome: %s\n", p.Outcome)

	var props []string
	if p.Hardness != "" {
		props = append(props, "- Hardness: "+p.Hardness)
	}
	if p.Ductility != "" {
		props = append(props, "- Ductility: "+p.Ductility)
	}
	if p.ThermalConductivity != "" {
		props = append(props, "- Thermal Conductivity: "+p.ThermalConductivity)
	}
	if len(props) > 0 {
		b.WriteString("\nMaterial Properties:\n")
		b.WriteString(strings.Join(props, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\nPlease provide a detailed technical recommendation in Markdown format, including:\n")
	b.WriteString("1. Analysis of the current geometry's suitability.\n")
	b.WriteString("2. Specific recommendations for Rake, Relief, or other angle adjustments.\n")
	b.WriteString("3. Explanation of the physical reasoning (e.g. heat dissipation, chip formation).\n")
	return b.String()
}

// Recommend asks the model for design advice on results.
func (a *Analyzer) Recommend(ctx context.Context, results []types.AngleMeasurement, p WorkpieceProfile) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", ErrNoMeasurements
	}

	text, err := a.model.Advise(ctx, RecommendationPrompt(results, p))
	if err != nil {
		return "", errors.Wrap(err, "failed to generate recommendations")
	}
	if strings.TrimSpace(text) == "" {
		return NoRecommendations, nil
	}
	return text, nil
}
