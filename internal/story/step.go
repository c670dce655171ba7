package story

// Step is one stage of the story form wizard, identified by its slug.
type Step string

const (
	StepIntro    Step = "intro"
	StepSectionA Step = "section-a"
	StepSectionB Step = "section-b"
	StepSectionC Step = "section-c"
	StepComplete Step = "complete"
)

// StepInfo is the static definition of a wizard stage: its position in the
// flow, display label and the fixed, ordered list of field keys it owns.
type StepInfo struct {
	Key    int
	Slug   Step
	Label  string
	Fields []string
}

var stepTable = map[Step]StepInfo{
	StepIntro: {
		Key:   0,
		Slug:  StepIntro,
		Label: "Introduction",
		Fields: []string{
			"intro_1",
			"intro_2",
			"intro_3",
		},
	},
	StepSectionA: {
		Key:   1,
		Slug:  StepSectionA,
		Label: "Section A",
		Fields: []string{
			"section_a_1",
			"section_a_2",
			"section_a_3",
			"section_a_4",
			"section_a_5",
			"section_a_6",
		},
	},
	StepSectionB: {
		Key:   2,
		Slug:  StepSectionB,
		Label: "Section B",
		Fields: []string{
			"section_b_1",
			"section_b_2",
			"section_b_3",
			"section_b_4",
			"section_b_5",
			"section_b_6",
			"section_b_7",
			"section_b_8",
			"section_b_9",
		},
	},
	StepSectionC: {
		Key:   3,
		Slug:  StepSectionC,
		Label: "Section C",
		Fields: []string{
			"section_c_1",
			"section_c_2",
			"section_c_3",
			"section_c_4",
			"section_c_5",
			"section_c_6",
			"section_c_7",
			"section_c_8",
			"section_c_9",
		},
	},
	StepComplete: {
		Key:    4,
		Slug:   StepComplete,
		Label:  "Complete",
		Fields: []string{},
	},
}

var stepByKey = map[int]Step{
	0: StepIntro,
	1: StepSectionA,
	2: StepSectionB,
	3: StepSectionC,
	4: StepComplete,
}

// StepFromSlug resolves a slug to its step, reporting whether it is known.
func StepFromSlug(slug string) (Step, bool) {
	_, ok := stepTable[Step(slug)]
	return Step(slug), ok
}

// StepFromKey resolves a numeric key to its step.
func StepFromKey(key int) (Step, bool) {
	s, ok := stepByKey[key]
	return s, ok
}

// Info returns the static definition for the step.
func (s Step) Info() StepInfo {
	return stepTable[s]
}

func (s Step) Key() int {
	return stepTable[s].Key
}

func (s Step) Label() string {
	return stepTable[s].Label
}

// Fields returns the ordered field keys for the step. Terminal steps own
// no fields.
func (s Step) Fields() []string {
	return stepTable[s].Fields
}

// HasField reports whether the field key belongs to this step.
func (s Step) HasField(key string) bool {
	for _, f := range stepTable[s].Fields {
		if f == key {
			return true
		}
	}
	return false
}

// FormSteps lists the non-terminal steps in wizard order.
func FormSteps() []Step {
	return []Step{StepIntro, StepSectionA, StepSectionB, StepSectionC}
}

// AllSteps maps each non-terminal step slug to its display label.
func AllSteps() map[string]string {
	out := make(map[string]string, 4)
	for _, s := range FormSteps() {
		out[string(s)] = s.Label()
	}
	return out
}
