package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamPayloadKey returns the cache key for an exam definition
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ActiveExamsKey returns the cache key for the list of active exam ids
func (r *CacheKeyStruct) ActiveExamsKey() string {
	return "exams:active"
}

// StudentActiveExamKey returns the key claiming a student's single live session
func (r *CacheKeyStruct) StudentActiveExamKey(studentID string) string {
	return fmt.Sprintf("student:%s:active_exam", studentID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
