package models

// CourseStatus represents the publication status of a course
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
	CourseStatusArchived  CourseStatus = "archived"
)

// ContentKind represents the kind of content a section holds
type ContentKind string

const (
	ContentKindVideo      ContentKind = "video"
	ContentKindQuiz       ContentKind = "quiz"
	ContentKindReading    ContentKind = "reading"
	ContentKindAssignment ContentKind = "assignment"
)

// Course represents a course owned by the platform
type Course struct {
	ID     int          `json:"id"`
	Title  string       `json:"title"`
	Status CourseStatus `json:"status"`
}

// Chapter represents an ordered group of sections within a course
type Chapter struct {
	ID       int       `json:"id"`
	CourseID int       `json:"courseId"`
	Title    string    `json:"title"`
	Order    int       `json:"order"`
	Sections []Section `json:"sections"`
}

// Section is the leaf unit of completion
type Section struct {
	ID        int         `json:"id"`
	ChapterID int         `json:"chapterId"`
	Title     string      `json:"title"`
	Order     int         `json:"order"`
	Kind      ContentKind `json:"kind"`
}

// CourseStructure represents a course with its ordered chapter/section tree
type CourseStructure struct {
	Course
	Chapters []Chapter `json:"chapters"`
}

// SectionLocation identifies where a section sits inside the content tree
type SectionLocation struct {
	SectionID int `json:"sectionId"`
	ChapterID int `json:"chapterId"`
	CourseID  int `json:"courseId"`
}
