package store

import "strconv"

// All keys are prefixed to share a redis database with other applications.
// Job records and result index entries live in separate namespaces so a job
// identifier can never collide with an input value.
const keyPrefix = "jobcache:"

// jobKey returns the key for a job record: jobcache:job:{id}
func jobKey(jobID string) string { return keyPrefix + "job:" + jobID }

// resultKey returns the key for a result index entry: jobcache:result:{input}
func resultKey(input int64) string { return keyPrefix + "result:" + strconv.FormatInt(input, 10) }
