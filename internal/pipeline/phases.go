package pipeline

// Phase names one stage of an ingest run. Phases advance strictly forward;
// a failure leaves the run in PhaseFailed with the last phase in the error.
type Phase string

const (
	PhaseValidating   Phase = "validating"
	PhaseNormalizing  Phase = "normalizing"
	PhaseResolving    Phase = "resolving_dimensions"
	PhaseMatching     Phase = "matching"
	PhaseUpserting    Phase = "upserting"
	PhaseRefreshing   Phase = "refreshing_cache"
	PhaseCopyStaging  Phase = "copying_to_staging"
	PhaseDeduplicate  Phase = "deduplicating_staging"
	PhaseCleanStaging Phase = "cleaning_staging"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)
