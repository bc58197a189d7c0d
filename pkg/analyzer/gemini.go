package analyzer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"
)

const (
	DefaultModel                     = "gemini-2.5-flash"
	DefaultTemperature               = 0.4
	DefaultRecommendationTemperature = 0.7
)

const measurePrompt = `Analyze this image of a single-point cutting tool.
Identify the following key geometries: Rake Angle, Relief Angle, Clearance Angle, and Side Cutting Edge Angle.

For each angle:
1. Estimate the value in degrees.
2. Provide pixel coordinates (relative to a 1000x1000 image) to visualize the vertex and the two legs of the angle.
3. Provide confidence level.`

var ErrEmptyResponse = errors.New("empty response from model")

// GeminiOptions configure a Gemini model.
type GeminiOptions struct {
	APIKey                    string
	Model                     string
	Temperature               float32
	RecommendationTemperature float32
}

// Gemini implements Model on the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	temp    float32
	recTemp float32
}

var _ Model = &Gemini{}

// NewGemini creates a Gemini-backed Model. Zero options fall back to the
// defaults above.
func NewGemini(ctx context.Context, o GeminiOptions) (*Gemini, error) {
	if o.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.RecommendationTemperature == 0 {
		o.RecommendationTemperature = DefaultRecommendationTemperature
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  o.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini client")
	}

	return &Gemini{
		client:  client,
		model:   o.Model,
		temp:    o.Temperature,
		recTemp: o.RecommendationTemperature,
	}, nil
}

// Name identifies the backing model.
func (g *Gemini) Name() string {
	return "gemini:" + g.model
}

func (g *Gemini) Measure(ctx context.Context, image []byte, mime string) ([]RawMeasurement, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mime),
			genai.NewPartFromText(measurePrompt),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temp),
		ResponseMIMEType: "application/json",
		ResponseSchema:   measurementSchema(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "gemini generate content failed")
	}

	return ParseMeasurements(resp.Text())
}

func (g *Gemini) Advise(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.recTemp),
	})
	if err != nil {
		return "", errors.Wrap(err, "gemini generate content failed")
	}
	return resp.Text(), nil
}

// ParseMeasurements decodes the JSON array produced for a measure request.
func ParseMeasurements(text string) ([]RawMeasurement, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var out []RawMeasurement
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, errors.Wrap(err, "failed to decode measurements")
	}
	return out, nil
}

func measurementSchema() *genai.Schema {
	point := func() *genai.Schema {
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"x": {Type: genai.TypeNumber},
				"y": {Type: genai.TypeNumber},
			},
		}
	}

	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"angleName": {
					Type:        genai.TypeString,
					Description: "Name of the measured angle (e.g., Rake Angle, Relief Angle)",
				},
				"measuredValue": {
					Type:        genai.TypeNumber,
					Description: "The measured value in degrees",
				},
				"coordinates": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"vertex": point(),
						"point1": point(),
						"point2": point(),
					},
					Description: "Pixel coordinates for visualizing the angle on the image (1000x1000 reference space).",
				},
				"confidence": {
					Type:        genai.TypeString,
					Enum:        []string{"High", "Medium", "Low"},
					Description: "Confidence level of the measurement",
				},
			},
			Required: []string{"angleName", "measuredValue", "coordinates", "confidence"},
		},
	}
}
