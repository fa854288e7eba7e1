package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrUsernameTaken      ErrCode = "USERNAME_TAKEN"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrExamNotActive       ErrCode = "EXAM_NOT_ACTIVE"
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"
	ErrQuestionsMissing    ErrCode = "QUESTIONS_MISSING"
	ErrSessionActive       ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrNoActiveSession     ErrCode = "NO_ACTIVE_SESSION"
	ErrInvalidState        ErrCode = "INVALID_STATE"
	ErrAlreadySubmitted    ErrCode = "ALREADY_SUBMITTED"
	ErrPersistenceFailure  ErrCode = "PERSISTENCE_FAILURE"
	ErrInvalidAnswerOption ErrCode = "INVALID_ANSWER_OPTION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal    ErrCode = "INTERNAL_ERROR"
	ErrUnavailable ErrCode = "SERVICE_UNAVAILABLE"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Username atau kata sandi salah."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrUsernameTaken:
		return "Username sudah digunakan."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Permintaan bertentangan dengan status sumber daya saat ini."
	case ErrDependencyExists:
		return "Data tidak dapat dihapus karena masih digunakan oleh data lain."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrExamNotActive:
		return "Ujian ini saat ini tidak aktif."
	case ErrNoQuestions:
		return "Ujian ini tidak memiliki pertanyaan."
	case ErrQuestionsMissing:
		return "Sebagian pertanyaan ujian tidak ditemukan."
	case ErrSessionActive:
		return "Anda masih memiliki ujian yang sedang berlangsung."
	case ErrNoActiveSession:
		return "Tidak ada ujian yang sedang berlangsung."
	case ErrInvalidState:
		return "Operasi tidak valid untuk status sesi saat ini."
	case ErrAlreadySubmitted:
		return "Ujian ini sudah dikumpulkan."
	case ErrPersistenceFailure:
		return "Jawaban sudah dinilai tetapi gagal disimpan. Penyimpanan akan dicoba ulang."
	case ErrInvalidAnswerOption:
		return "Pilihan jawaban tidak valid."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	case ErrUnavailable:
		return "Layanan sedang tidak tersedia."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
