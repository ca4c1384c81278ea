package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/quarryhq/quarry/core"
)

// Key prefixes for different data types
const (
	jobRecordPrefix  = "jobrec"
	jobIDSeq         = "jobrecseq"
	jobActivePrefix  = "jobact"
	jobLeasePrefix   = "joblease"
	chunkPrefix      = "chkrec"
	chunkJobPrefix   = "chkjob"
	vectorPrefix     = "vecrec"
	conceptPrefix    = "gphrec"
	stagingRawPrefix = "stgraw"
	stagingArtPrefix = "stgart"
	taskPrefix       = "tskrec"
)

// makeJobKey generates a key for a job by ID.
func makeJobKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", jobRecordPrefix, id))
}

// makeActiveJobKey generates a key for the idempotent submission index.
func makeActiveJobKey(submissionKey core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", jobActivePrefix, submissionKey))
}

// makeLeaseKey generates a key for a job's single-writer lease.
func makeLeaseKey(jobID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", jobLeasePrefix, jobID))
}

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", chunkPrefix, id))
}

// makeChunkJobKey generates a composite key for the per-job chunk index.
// Format: prefix:jobID:sequenceIndex
func makeChunkJobKey(jobID core.ID, sequenceIndex int) []byte {
	prefix := chunkJobPrefix + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(jobID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(sequenceIndex))
	return buf
}

// makePartialChunkJobKey generates a prefix covering every chunk of a job.
func makePartialChunkJobKey(jobID core.ID) []byte {
	prefix := chunkJobPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(jobID))
	return buf
}

// makeVectorKey generates a composite key for an embedding.
// Format: prefix:jobID:chunkID:modelVersion
func makeVectorKey(jobID, chunkID core.ID, modelVersion string) []byte {
	prefix := vectorPrefix + ":"
	buf := make([]byte, len(prefix)+16+1+len(modelVersion))
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(jobID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(chunkID))
	offset += 8
	buf[offset] = ':'
	offset++
	copy(buf[offset:], modelVersion)
	return buf
}

// makePartialVectorKey generates a prefix covering every vector of a job.
func makePartialVectorKey(jobID core.ID) []byte {
	prefix := vectorPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(jobID))
	return buf
}

// makeConceptKey generates a composite key for a concept.
// Format: prefix:jobID:conceptID
func makeConceptKey(jobID, conceptID core.ID) []byte {
	prefix := conceptPrefix + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(jobID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(conceptID))
	return buf
}

// makePartialConceptKey generates a prefix covering every concept of a job.
func makePartialConceptKey(jobID core.ID) []byte {
	prefix := conceptPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(jobID))
	return buf
}

// makeStagingRawKey generates a key for a job's staged source text.
func makeStagingRawKey(jobID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", stagingRawPrefix, jobID))
}

// makeStagingArtifactsKey generates a key for a job's staged pipeline output.
func makeStagingArtifactsKey(jobID core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", stagingArtPrefix, jobID))
}

// makeTaskKey generates a key for a queued task.
func makeTaskKey(id string) []byte {
	return []byte(taskPrefix + ":" + id)
}
