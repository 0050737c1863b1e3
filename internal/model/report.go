package model

// ScrambleOutcomeImpact classifies the scramble balance of a session.
type ScrambleOutcomeImpact string

const (
	ScrambleDominant      ScrambleOutcomeImpact = "dominant"
	ScrambleNeutral       ScrambleOutcomeImpact = "neutral"
	ScrambleDisadvantaged ScrambleOutcomeImpact = "disadvantaged"
)

// SessionReport is the durable, JSON-storable output of a session. Every
// numeric leaf is nullable: nil means "not computed", never zero.
type SessionReport struct {
	CorePositionalMetrics  CorePositionalMetrics  `json:"corePositionalMetrics"`
	GuardMetrics           GuardMetrics           `json:"guardMetrics"`
	TransitionMetrics      TransitionMetrics      `json:"transitionMetrics"`
	SubmissionMetrics      SubmissionMetrics      `json:"submissionMetrics"`
	ScrambleMetrics        ScrambleMetrics        `json:"scrambleMetrics"`
	EffortEnduranceMetrics EffortEnduranceMetrics `json:"effortEnduranceMetrics"`
	ConsistencyTrends      ConsistencyTrends      `json:"consistencyTrends"`
	Summary                ReportSummary          `json:"summary"`
}

type CorePositionalMetrics struct {
	PositionalControlTimes map[string]*float64 `json:"positionalControlTimes"`
	Escapes                EscapeMetrics       `json:"escapes"`
	Reversals              ReversalMetrics     `json:"reversals"`
}

type EscapeMetrics struct {
	Attempts       *int     `json:"attempts"`
	SuccessPercent *float64 `json:"successPercent"`
}

type ReversalMetrics struct {
	Count          *int     `json:"count"`
	SuccessPercent *float64 `json:"successPercent"`
}

type GuardMetrics struct {
	GuardRetentionPercent      *float64 `json:"guardRetentionPercent"`
	SweepAttempts              *int     `json:"sweepAttempts"`
	SweepSuccessPercent        *float64 `json:"sweepSuccessPercent"`
	PassingAttempts            *int     `json:"passingAttempts"`
	GuardPassPreventionPercent *float64 `json:"guardPassPreventionPercent"`
}

type TransitionMetrics struct {
	TransitionEfficiencyPercent *float64    `json:"transitionEfficiencyPercent"`
	ErrorCounts                 ErrorCounts `json:"errorCounts"`
}

type ErrorCounts struct {
	FailedTransition  *int `json:"failedTransition"`
	LostGuard         *int `json:"lostGuard"`
	PositionalMistake *int `json:"positionalMistake"`
}

type SubmissionMetrics struct {
	SubmissionAttempts       *int     `json:"submissionAttempts"`
	SubmissionSuccessPercent *float64 `json:"submissionSuccessPercent"`
	SubmissionChains         *int     `json:"submissionChains"`
	SubmissionDefenses       *int     `json:"submissionDefenses"`
}

type ScrambleMetrics struct {
	ScrambleFrequency     *int                   `json:"scrambleFrequency"`
	ScrambleWinPercent    *float64               `json:"scrambleWinPercent"`
	ScrambleOutcomeImpact *ScrambleOutcomeImpact `json:"scrambleOutcomeImpact"`
}

type EffortEnduranceMetrics struct {
	RollingIntensityScore     *int      `json:"rollingIntensityScore"`
	FatigueCurve              []float64 `json:"fatigueCurve"`
	EnduranceIndicator        *float64  `json:"enduranceIndicator"`
	RecoveryTimeBetweenRounds *float64  `json:"recoveryTimeBetweenRounds"`
}

type ConsistencyTrends struct {
	SessionConsistencyRating *int     `json:"sessionConsistencyRating"`
	TechnicalVarietyIndex    *int     `json:"technicalVarietyIndex"`
	PositionalErrorTrends    []string `json:"positionalErrorTrends"`
}

type ReportSummary struct {
	OverallSessionScorecard    *float64           `json:"overallSessionScorecard"`
	HistoricalPerformanceTrend []float64          `json:"historicalPerformanceTrend"`
	WinLossRatioByPosition     map[string]float64 `json:"winLossRatioByPosition"`
	ReactionSpeed              *float64           `json:"reactionSpeed"`
}
