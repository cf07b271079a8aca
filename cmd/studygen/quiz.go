package main

import (
	"github.com/spf13/cobra"

	"github.com/ternarybob/studygen/internal/services/prompt"
)

var quizCmd = &cobra.Command{
	Use:   "quiz <pdf> <topic>",
	Short: "Generate five quiz questions on a topic from a PDF",
	Long: `Generates five questions on the topic from the passage of the PDF that best matches it.
Types: mcq, fill_in_the_blanks, true_false, qa. Difficulties: easy, medium, hard.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuiz,
}

var (
	quizType       string
	quizDifficulty string
)

func init() {
	quizCmd.Flags().StringVarP(&quizType, "type", "t", string(prompt.DefaultQuizType), "Question type")
	quizCmd.Flags().StringVar(&quizDifficulty, "difficulty", string(prompt.DefaultDifficulty), "Question difficulty")
	addGenerateFlags(quizCmd)
}

func runQuiz(cmd *cobra.Command, args []string) error {
	task, err := prompt.ParseQuizTask(quizType, quizDifficulty)
	if err != nil {
		return invalidParameter(err)
	}
	_, err = runGeneration(cmd, args[0], args[1], task, nil)
	return err
}
