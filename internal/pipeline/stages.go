package pipeline

// RunState names one state of the pipeline state machine. Transitions are
// strictly sequential; the only branching is the global error short-circuit.
type RunState string

const (
	StateInit        RunState = "init"
	StateCollecting  RunState = "collecting"
	StateClassifying RunState = "classifying"
	StateAnalyzing   RunState = "analyzing"
	StateVisualizing RunState = "visualizing"
	StateReporting   RunState = "reporting"
	StateCompleted   RunState = "completed"
	StateFailed      RunState = "failed"
)

// Stage names used in audit entries and error tags.
const (
	StageCollect   = "collect_data"
	StageClassify  = "classify_data"
	StageAnalyze   = "analyze_data"
	StageVisualize = "generate_visualizations"
)

// StageDescriptor describes one ordered pipeline stage: which state field it
// reads, which it writes, and which capabilities can serve it. The ordered
// descriptor list is the inspectable transition table; every stage runs
// through the same uniform execution path.
type StageDescriptor struct {
	Name         string
	State        RunState
	Input        Field
	Output       Field
	Capabilities Set
	Selector     Selector
	Retries      int
}

// Stages builds the standard transition table. Collection reads the search
// criteria; each later stage consumes its predecessor's output field.
// classifierName selects the preferred classification capability by name;
// when empty, the registration order decides.
func Stages(collection, classification, analysis, visualization Set, classifierName string, retries int) []StageDescriptor {
	return []StageDescriptor{
		{
			Name:         StageCollect,
			State:        StateCollecting,
			Input:        FieldCollectionInput,
			Output:       FieldRawData,
			Capabilities: collection,
			Selector:     Selector{Kind: KindCollection},
			Retries:      retries,
		},
		{
			Name:         StageClassify,
			State:        StateClassifying,
			Input:        FieldRawData,
			Output:       FieldClassifiedData,
			Capabilities: classification,
			Selector:     Selector{Kind: KindClassification, Name: classifierName},
			Retries:      retries,
		},
		{
			Name:         StageAnalyze,
			State:        StateAnalyzing,
			Input:        FieldClassifiedData,
			Output:       FieldAnalysisResults,
			Capabilities: analysis,
			Selector:     Selector{Kind: KindAnalysis},
			Retries:      retries,
		},
		{
			Name:         StageVisualize,
			State:        StateVisualizing,
			Input:        FieldAnalysisResults,
			Output:       FieldVisualizations,
			Capabilities: visualization,
			Selector:     Selector{Kind: KindVisualization},
			// Visualizations are optional enrichment; one attempt fewer
			// keeps a flaky renderer from stalling the run.
			Retries: min(retries, 1),
		},
	}
}
