// Package service contains the application use cases of the CE engine. It
// orchestrates the domain rules (lifecycle, grading, eligibility) with the
// repositories defined in internal/store.
//
// Key components:
//
// 1. Service Interfaces:
//   - LifecycleService moves events through approval and delivery
//   - ParticipationService records registrations, attendance and feedback
//   - QuizService authors quizzes and grades attempts
//   - EligibilityService and CertificateService decide and issue certificates
//   - VerificationService serves public certificate lookups
//   - ProviderService maintains provider accreditation
//
// 2. Transactions:
//   - Multi-step writes run through a store.Transactor so that every
//     operation is retry-safe and leaves no partial state behind
//   - Uniqueness (one certificate per registration, one feedback per
//     registration) is enforced by the store, never by in-process locks
//
// 3. Error Handling:
//   - Business conditions are returned as sentinel or typed domain errors
//   - Unexpected failures are wrapped in *ServiceError
//   - The API layer maps both to HTTP status codes
package service
