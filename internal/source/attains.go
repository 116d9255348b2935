package source

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pinwater/waterwatch/internal/model"
)

// AttainsClient fetches CWA 305(b)/303(d) assessment summaries per state.
// It backs the national bulk cache; requests read the cache, never this
// client directly.
type AttainsClient struct {
	chain *Chain
}

// NewAttainsClient creates the ATTAINS client.
func NewAttainsClient(chain *Chain) *AttainsClient {
	return &AttainsClient{chain: chain}
}

type attainsResponse struct {
	Items []struct {
		AssessmentUnitIdentifier string `json:"assessmentUnitIdentifier"`
		EPAIRCategory            string `json:"epaIRCategory"`
		CycleLastAssessed        string `json:"cycleLastAssessed"`
		Parameters               []struct {
			ParameterName   string `json:"parameterName"`
			ParameterStatus string `json:"parameterStatusName"`
		} `json:"parameters"`
	} `json:"items"`
}

// FetchState pulls and normalizes one state's assessment summary.
func (c *AttainsClient) FetchState(ctx context.Context, state string) (*model.ImpairmentSummary, error) {
	body, _, _, err := c.chain.Get(ctx, map[string]string{"state": state})
	if err != nil {
		return nil, eris.Wrapf(err, "attains: fetch %s", state)
	}

	var resp attainsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrapf(err, "attains: decode %s", state)
	}

	summary := &model.ImpairmentSummary{State: state}
	causeCounts := make(map[string]int)
	for _, item := range resp.Items {
		summary.AssessedUnits++
		if summary.ReportingCycle == "" {
			summary.ReportingCycle = item.CycleLastAssessed
		}
		// IR categories 4 and 5 are impaired waters.
		if strings.HasPrefix(item.EPAIRCategory, "4") || strings.HasPrefix(item.EPAIRCategory, "5") {
			summary.ImpairedUnits++
			for _, p := range item.Parameters {
				if strings.EqualFold(p.ParameterStatus, "Cause") && p.ParameterName != "" {
					causeCounts[p.ParameterName]++
				}
			}
		}
	}
	summary.TopCauses = topN(causeCounts, 5)
	return summary, nil
}

// topN returns the n highest-count keys, ties broken alphabetically.
func topN(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
