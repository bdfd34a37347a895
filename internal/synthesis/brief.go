package synthesis

import (
	"fmt"
	"sort"
	"time"

	"github.com/mikey/inbox-intel/internal/core"
)

// CompileBrief is stage five: pure aggregation of the earlier stages'
// outputs into the ranked intelligence brief. It makes no model calls and is
// deterministic for fixed inputs, so a cached brief reproduces exactly.
func CompileBrief(
	contexts []core.BusinessContext,
	insights []core.StrategicInsight,
	recommendations []core.StrategicRecommendation,
	topN int,
	generatedAt time.Time,
) core.IntelligenceBrief {
	brief := core.IntelligenceBrief{
		GeneratedAt: generatedAt,
	}

	ranked := make([]core.StrategicRecommendation, len(recommendations))
	copy(ranked, recommendations)
	sort.SliceStable(ranked, func(i, j int) bool {
		ui, uj := urgencyRank(ranked[i].Urgency), urgencyRank(ranked[j].Urgency)
		if ui != uj {
			return ui < uj
		}
		if ranked[i].ConfidenceScore != ranked[j].ConfidenceScore {
			return ranked[i].ConfidenceScore > ranked[j].ConfidenceScore
		}
		return ranked[i].Title < ranked[j].Title
	})

	for _, rec := range ranked {
		switch rec.Urgency {
		case core.UrgencyCritical, core.UrgencyHigh:
			if len(brief.ImmediateActions) < topN {
				brief.ImmediateActions = append(brief.ImmediateActions, rec)
			}
		default:
			if len(brief.ShortTermActions) < topN {
				brief.ShortTermActions = append(brief.ShortTermActions, rec)
			}
		}
	}

	byPriority := make([]core.BusinessContext, len(contexts))
	copy(byPriority, contexts)
	sort.SliceStable(byPriority, func(i, j int) bool {
		if byPriority[i].PriorityScore != byPriority[j].PriorityScore {
			return byPriority[i].PriorityScore > byPriority[j].PriorityScore
		}
		return byPriority[i].Name < byPriority[j].Name
	})

	for _, ctx := range byPriority {
		switch ctx.Type {
		case core.ContextOpportunity:
			if len(brief.Opportunities) < topN {
				brief.Opportunities = append(brief.Opportunities, ctx)
			}
		case core.ContextChallenge:
			if len(brief.Risks) < topN {
				brief.Risks = append(brief.Risks, ctx)
			}
		case core.ContextProject:
			if len(brief.ActiveProjects) < topN {
				brief.ActiveProjects = append(brief.ActiveProjects, ctx)
			}
		default:
			if len(brief.KeyRelationships) < topN {
				brief.KeyRelationships = append(brief.KeyRelationships, ctx)
			}
		}
	}

	brief.ExecutiveSummary = executiveSummary(contexts, insights, recommendations)
	return brief
}

// executiveSummary is computed from counts only, so the compile stage stays
// model-free
func executiveSummary(
	contexts []core.BusinessContext,
	insights []core.StrategicInsight,
	recommendations []core.StrategicRecommendation,
) string {
	if len(contexts) == 0 && len(insights) == 0 && len(recommendations) == 0 {
		return "No significant business activity identified in the analyzed period; no action needed."
	}

	urgent := 0
	for _, rec := range recommendations {
		if rec.Urgency == core.UrgencyCritical || rec.Urgency == core.UrgencyHigh {
			urgent++
		}
	}

	risks := 0
	opportunities := 0
	for _, ctx := range contexts {
		switch ctx.Type {
		case core.ContextChallenge:
			risks++
		case core.ContextOpportunity:
			opportunities++
		}
	}

	summary := fmt.Sprintf(
		"Identified %d business contexts (%d opportunities, %d risks), %d strategic insights, and %d recommendations",
		len(contexts), opportunities, risks, len(insights), len(recommendations))
	if urgent > 0 {
		summary += fmt.Sprintf("; %d require near-term attention", urgent)
	}
	return summary + "."
}

func urgencyRank(u core.Urgency) int {
	switch u {
	case core.UrgencyCritical:
		return 0
	case core.UrgencyHigh:
		return 1
	case core.UrgencyMedium:
		return 2
	default:
		return 3
	}
}
