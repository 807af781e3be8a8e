package api

import (
	"time"

	"github.com/behaviorschool/ceu-api/internal/domain"
	"github.com/google/uuid"
)

// CreateProviderRequest defines the payload for registering a provider.
type CreateProviderRequest struct {
	ProviderName       string `json:"provider_name"        validate:"required,max=200"`
	BACBProviderNumber string `json:"bacb_provider_number" validate:"required,max=50"`
	ContactEmail       string `json:"contact_email"        validate:"omitempty,email"`
}

// CreateEventRequest defines the payload for creating a draft event.
// ProviderID is only honoured for administrators; providers always create
// events for themselves.
type CreateEventRequest struct {
	ProviderID                      *uuid.UUID `json:"provider_id,omitempty"`
	Title                           string     `json:"title"                             validate:"required,max=300"`
	Description                     string     `json:"description"                       validate:"max=10000"`
	Category                        string     `json:"ce_category"                       validate:"required,oneof=ethics supervision teaching learning"`
	Modality                        string     `json:"modality"                          validate:"required,oneof=in_person synchronous asynchronous"`
	TotalCEUs                       float64    `json:"total_ceus"                        validate:"gt=0,lte=100"`
	StartDate                       time.Time  `json:"start_date"`
	EndDate                         *time.Time `json:"end_date,omitempty"`
	MaxParticipants                 *int       `json:"max_participants,omitempty"        validate:"omitempty,gt=0"`
	FeeCents                        int64      `json:"fee_cents"                         validate:"gte=0"`
	InstructorID                    *uuid.UUID `json:"instructor_id,omitempty"`
	InstructorName                  string     `json:"instructor_name"                   validate:"max=200"`
	LearningObjectives              []string   `json:"learning_objectives"               validate:"max=25,dive,max=500"`
	InstructorQualificationsSummary string     `json:"instructor_qualifications_summary" validate:"max=5000"`
	ConflictsOfInterest             string     `json:"conflicts_of_interest"             validate:"max=5000"`
}

// CheckInCodeRequest sets the attendance verification code of an event.
type CheckInCodeRequest struct {
	Code string `json:"code" validate:"required,min=4,max=64"`
}

// RejectEventRequest carries the reviewer's reason.
type RejectEventRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// RegisterRequest defines the payload for registering for an event.
type RegisterRequest struct {
	Name   string `json:"name"    validate:"required,max=200"`
	BACBID string `json:"bacb_id" validate:"max=20"`
	Email  string `json:"email"   validate:"required,email"`
}

// CheckInRequest carries the code announced at the event.
type CheckInRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// ProgressRequest reports asynchronous completion.
type ProgressRequest struct {
	Percentage int `json:"percentage" validate:"gte=0,lte=100"`
}

// FeedbackRequest defines the post-event survey payload.
type FeedbackRequest struct {
	OverallRating    int    `json:"overall_rating"    validate:"gte=1,lte=5"`
	InstructorRating int    `json:"instructor_rating" validate:"gte=1,lte=5"`
	ContentRating    int    `json:"content_rating"    validate:"gte=1,lte=5"`
	RelevanceRating  int    `json:"relevance_rating"  validate:"gte=1,lte=5"`
	ApplicationPlan  string `json:"application_plan"  validate:"required,max=5000"`
	Comments         string `json:"comments"          validate:"max=5000"`
}

// QuizOptionRequest is one selectable answer.
type QuizOptionRequest struct {
	ID   string `json:"id"   validate:"required,max=50"`
	Text string `json:"text" validate:"required,max=1000"`
}

// QuizQuestionRequest is one question of a quiz definition.
type QuizQuestionRequest struct {
	Prompt           string              `json:"prompt"             validate:"required,max=2000"`
	Type             string              `json:"question_type"      validate:"required,oneof=multiple_choice true_false multiple_select"`
	Options          []QuizOptionRequest `json:"options"            validate:"required,min=2,max=10,dive"`
	CorrectAnswerIDs []string            `json:"correct_answer_ids" validate:"required,min=1"`
	Points           int                 `json:"points"             validate:"gte=0,lte=100"`
}

// CreateQuizRequest defines the payload for attaching a quiz to an event.
type CreateQuizRequest struct {
	Title         string                `json:"title"                  validate:"required,max=300"`
	PassThreshold float64               `json:"pass_threshold"         validate:"gte=0,lte=1"`
	MaxAttempts   *int                  `json:"max_attempts,omitempty" validate:"omitempty,gte=1"`
	Questions     []QuizQuestionRequest `json:"questions"              validate:"required,min=1,max=200,dive"`
}

// SubmitAttemptRequest maps question ids to the selected option ids.
type SubmitAttemptRequest struct {
	Answers domain.Answers `json:"answers" validate:"required"`
}

// RevokeCertificateRequest carries the revocation reason.
type RevokeCertificateRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// RegistrationResponse wraps a registration with whether this request
// created it.
type RegistrationResponse struct {
	*domain.Registration
	AlreadyRegistered bool `json:"already_registered"`
}

// ParticipantQuestion is a question without its answer key.
type ParticipantQuestion struct {
	ID       uuid.UUID           `json:"id"`
	Position int                 `json:"position"`
	Prompt   string              `json:"prompt"`
	Type     domain.QuestionType `json:"question_type"`
	Options  []domain.QuizOption `json:"options"`
	Points   int                 `json:"points"`
}

// ParticipantQuiz is the quiz as shown to people taking it.
type ParticipantQuiz struct {
	ID            uuid.UUID             `json:"id"`
	EventID       uuid.UUID             `json:"event_id"`
	Title         string                `json:"title"`
	PassThreshold float64               `json:"pass_threshold"`
	MaxAttempts   *int                  `json:"max_attempts,omitempty"`
	Questions     []ParticipantQuestion `json:"questions"`
}

// DraftQuestionsResponse holds machine-drafted questions awaiting review.
type DraftQuestionsResponse struct {
	Questions []domain.QuizQuestion `json:"questions"`
}

// VerificationResponse is the public view of an issued certificate. It
// leaves out participant identifiers other than the name.
type VerificationResponse struct {
	CertificateNumber string            `json:"certificate_number"`
	ParticipantName   string            `json:"participant_name"`
	EventTitle        string            `json:"event_title"`
	EventDate         time.Time         `json:"event_date"`
	TotalCEUs         float64           `json:"total_ceus"`
	Category          domain.CECategory `json:"ce_category"`
	ProviderName      string            `json:"provider_name"`
	ProviderNumber    string            `json:"provider_number,omitempty"`
	InstructorName    string            `json:"instructor_name"`
	IssuedAt          time.Time         `json:"issued_at"`
	Status            string            `json:"status"`
}

func toDomainQuestions(in []QuizQuestionRequest) []domain.QuizQuestion {
	out := make([]domain.QuizQuestion, 0, len(in))
	for i, q := range in {
		options := make([]domain.QuizOption, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, domain.QuizOption{ID: o.ID, Text: o.Text})
		}
		out = append(out, domain.QuizQuestion{
			Position:         i + 1,
			Prompt:           q.Prompt,
			Type:             domain.QuestionType(q.Type),
			Options:          options,
			CorrectAnswerIDs: q.CorrectAnswerIDs,
			Points:           q.Points,
		})
	}
	return out
}

func toParticipantQuiz(q *domain.Quiz) ParticipantQuiz {
	questions := make([]ParticipantQuestion, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, ParticipantQuestion{
			ID:       question.ID,
			Position: question.Position,
			Prompt:   question.Prompt,
			Type:     question.Type,
			Options:  question.Options,
			Points:   question.Points,
		})
	}
	return ParticipantQuiz{
		ID:            q.ID,
		EventID:       q.EventID,
		Title:         q.Title,
		PassThreshold: q.PassThreshold,
		MaxAttempts:   q.MaxAttempts,
		Questions:     questions,
	}
}

func toVerificationResponse(c *domain.Certificate) VerificationResponse {
	return VerificationResponse{
		CertificateNumber: c.CertificateNumber,
		ParticipantName:   c.ParticipantName,
		EventTitle:        c.EventTitle,
		EventDate:         c.EventDate,
		TotalCEUs:         c.TotalCEUs,
		Category:          c.Category,
		ProviderName:      c.ProviderName,
		ProviderNumber:    c.ProviderNumber,
		InstructorName:    c.InstructorName,
		IssuedAt:          c.IssuedAt,
		Status:            string(c.Status),
	}
}
