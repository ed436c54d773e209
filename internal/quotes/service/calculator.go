package service

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"marketplace_backend/internal/quotes/repository"
	"marketplace_backend/internal/quotes/transport"
)

var quantityRegex = regexp.MustCompile(`^([\d.,]+)`)

// parseQuantityNumber extracts the numeric value from a free-form quantity.
// Examples: "5 x" -> 5.0, "10 m²" -> 10.0, "3,5 klst" -> 3.5
func parseQuantityNumber(quantity string) float64 {
	matches := quantityRegex.FindStringSubmatch(strings.TrimSpace(quantity))
	if len(matches) < 2 {
		return 1.0
	}
	// Comma decimal separator
	cleaned := strings.ReplaceAll(matches[1], ",", ".")
	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || val <= 0 {
		return 1.0
	}
	return val
}

// roundCents rounds a float to the nearest cent (integer)
func roundCents(v float64) int64 {
	return int64(math.Round(v))
}

// SummarizeMaterials computes per-line totals and the materials total.
func SummarizeMaterials(materials []repository.Material) ([]transport.MaterialLine, int64) {
	lines := make([]transport.MaterialLine, 0, len(materials))
	var total float64
	for _, m := range materials {
		lineTotal := parseQuantityNumber(m.Quantity) * float64(m.UnitPriceCents)
		total += lineTotal
		lines = append(lines, transport.MaterialLine{
			Description:    m.Description,
			Quantity:       m.Quantity,
			UnitPriceCents: m.UnitPriceCents,
			LineTotalCents: roundCents(lineTotal),
		})
	}
	return lines, roundCents(total)
}

// ToQuoteResponse maps a stored quote to its public shape.
func ToQuoteResponse(q *repository.Quote) transport.QuoteResponse {
	lines, total := SummarizeMaterials(q.Materials)
	return transport.QuoteResponse{
		ID:                  q.ID,
		JobRequestID:        q.JobRequestID,
		ProfessionalID:      q.ProfessionalID,
		PriceCents:          q.PriceCents,
		Currency:            q.Currency,
		Timeline:            q.Timeline,
		Description:         q.Description,
		Materials:           lines,
		MaterialsTotalCents: total,
		Status:              q.Status,
		CreatedAt:           q.CreatedAt,
		UpdatedAt:           q.UpdatedAt,
		ExpiresAt:           q.ExpiresAt,
		RespondedAt:         q.RespondedAt,
	}
}

func toMaterials(reqs []transport.MaterialRequest) []repository.Material {
	materials := make([]repository.Material, 0, len(reqs))
	for _, r := range reqs {
		materials = append(materials, repository.Material{
			Description:    strings.TrimSpace(r.Description),
			Quantity:       strings.TrimSpace(r.Quantity),
			UnitPriceCents: r.UnitPriceCents,
		})
	}
	return materials
}
