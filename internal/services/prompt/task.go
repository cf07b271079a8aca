package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/studygen/internal/models"
)

// ErrInvalidParameter is returned for an unknown detail level, quiz type or difficulty
var ErrInvalidParameter = errors.New("invalid parameter")

// DetailLevel selects how thorough generated notes are
type DetailLevel string

const (
	DetailVeryDetailed     DetailLevel = "very detailed"
	DetailSlightlyDetailed DetailLevel = "slightly detailed"
	DetailSmallOverview    DetailLevel = "small overview"
)

// QuizType selects the question format
type QuizType string

const (
	QuizMCQ             QuizType = "mcq"
	QuizFillInTheBlanks QuizType = "fill_in_the_blanks"
	QuizTrueFalse       QuizType = "true_false"
	QuizShortAnswer     QuizType = "qa"
)

// Difficulty of generated quiz questions
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Defaults applied when a parameter is omitted
const (
	DefaultDetailLevel = DetailSlightlyDetailed
	DefaultQuizType    = QuizTrueFalse
	DefaultDifficulty  = DifficultyMedium
)

var levelDescriptions = map[DetailLevel]string{
	DetailVeryDetailed:     "Write highly detailed, well-explained notes covering all important concepts, examples, and definitions.",
	DetailSlightlyDetailed: "Write moderately detailed notes that cover all key ideas but keep explanations concise.",
	DetailSmallOverview:    "Write a brief summary highlighting only the main points and essential facts.",
}

var quizTemplates = map[QuizType]string{
	QuizMCQ: `Generate 5 %s level multiple-choice questions on "%s" from the given passage.

Format:
Q1. Question?
A) Option1
B) Option2
C) Option3
D) Option4
Answer: B
`,
	QuizFillInTheBlanks: `Generate 5 %s level fill-in-the-blank questions on "%s" from the passage.

Format:
Q1. The ____ is the powerhouse of the cell.
Answer: mitochondria
`,
	QuizTrueFalse: `Generate 5 %s level true or false questions on "%s" using the passage.

Format:
Q1. The sun is a planet.
Answer: False
(Do not provide explanations or justifications for the answers.)
`,
	QuizShortAnswer: `Generate 5 %s level short answer questions on "%s" from the passage.

Format:
Q1. What is the function of mitochondria?
Answer: They produce energy.
`,
}

var difficulties = map[Difficulty]bool{
	DifficultyEasy:   true,
	DifficultyMedium: true,
	DifficultyHard:   true,
}

// Task is the tagged union of generation tasks: NotesTask or QuizTask
type Task interface {
	Kind() models.TaskKind
	// Params returns the task parameters in canonical order for request ids
	Params() []string
	// Validate returns ErrInvalidParameter for values outside the known sets
	Validate() error
	// Apply copies the task parameters onto a record
	Apply(record *models.GenerationRecord)
	// Prompt renders the instruction for a single-line passage and topic
	Prompt(passage, topic string) string
	isTask()
}

// Canonical returns task as a value: pointer tasks are dereferenced and a nil
// pointer becomes a nil Task
func Canonical(task Task) Task {
	switch t := task.(type) {
	case *NotesTask:
		if t == nil {
			return nil
		}
		return *t
	case *QuizTask:
		if t == nil {
			return nil
		}
		return *t
	}
	return task
}

// NotesTask asks for study notes at a detail level
type NotesTask struct {
	Detail DetailLevel
}

func (NotesTask) isTask() {}

func (NotesTask) Kind() models.TaskKind { return models.TaskKindNotes }

func (t NotesTask) Params() []string { return []string{string(t.Detail)} }

func (t NotesTask) Validate() error {
	if _, ok := levelDescriptions[t.Detail]; !ok {
		return fmt.Errorf("%w: detail level %q must be one of 'very detailed', 'slightly detailed', 'small overview'", ErrInvalidParameter, t.Detail)
	}
	return nil
}

func (t NotesTask) Apply(record *models.GenerationRecord) {
	record.Kind = models.TaskKindNotes
	record.DetailLevel = string(t.Detail)
}

func (t NotesTask) Prompt(passage, topic string) string {
	return fmt.Sprintf("You are a helpful AI tutor.\n\nPASSAGE: %s\n\nTASK: Generate %s notes on the topic \"%s\".\n%s\n",
		passage, t.Detail, topic, levelDescriptions[t.Detail])
}

// QuizTask asks for five questions of one type at one difficulty
type QuizTask struct {
	Type       QuizType
	Difficulty Difficulty
}

func (QuizTask) isTask() {}

func (QuizTask) Kind() models.TaskKind { return models.TaskKindQuiz }

func (t QuizTask) Params() []string { return []string{string(t.Type), string(t.Difficulty)} }

func (t QuizTask) Validate() error {
	if _, ok := quizTemplates[t.Type]; !ok {
		return fmt.Errorf("%w: unsupported quiz type %q (mcq, fill_in_the_blanks, true_false, qa)", ErrInvalidParameter, t.Type)
	}
	if !difficulties[t.Difficulty] {
		return fmt.Errorf("%w: unsupported difficulty %q (easy, medium, hard)", ErrInvalidParameter, t.Difficulty)
	}
	return nil
}

func (t QuizTask) Apply(record *models.GenerationRecord) {
	record.Kind = models.TaskKindQuiz
	record.QuizType = string(t.Type)
	record.Difficulty = string(t.Difficulty)
}

func (t QuizTask) Prompt(passage, topic string) string {
	body := fmt.Sprintf(quizTemplates[t.Type], strings.ToLower(string(t.Difficulty)), topic)
	return "PASSAGE: " + passage + "\n" + body
}

// ParseNotesTask builds a validated notes task; an empty level takes the default.
// Detail levels are matched exactly.
func ParseNotesTask(detail string) (NotesTask, error) {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = string(DefaultDetailLevel)
	}
	task := NotesTask{Detail: DetailLevel(detail)}
	return task, task.Validate()
}

// ParseQuizTask builds a validated quiz task. Values are lower-cased and empty
// values take the defaults.
func ParseQuizTask(quizType, difficulty string) (QuizTask, error) {
	quizType = strings.ToLower(strings.TrimSpace(quizType))
	if quizType == "" {
		quizType = string(DefaultQuizType)
	}
	difficulty = strings.ToLower(strings.TrimSpace(difficulty))
	if difficulty == "" {
		difficulty = string(DefaultDifficulty)
	}
	task := QuizTask{Type: QuizType(quizType), Difficulty: Difficulty(difficulty)}
	return task, task.Validate()
}
