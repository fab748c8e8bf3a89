package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Graph documents are plain text files uploaded to the graph knowledge
// service. The filename embeds a content hash and the originating memory ID
// so that documents can be matched back for deletion, and the body starts
// with a machine-readable topic header line.

const (
	graphDocPrefix  = "memory_"
	graphDocExt     = ".txt"
	contentHashLen  = 12
	topicHeaderMark = "# Topics: "
)

// ContentHash returns a short hex digest of the content, used in graph
// document filenames and diagnostic logs.
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])[:contentHashLen]
}

// GraphDocName builds the upload filename for a memory record:
// memory_<hash>_<memory_id>.txt
func GraphDocName(content string, id MemoryID) string {
	return fmt.Sprintf("%s%s_%s%s", graphDocPrefix, ContentHash(content), id, graphDocExt)
}

// BuildGraphDocument renders the uploaded document body: a topic header line
// followed by the memory content.
func BuildGraphDocument(content string, topics []string) string {
	return fmt.Sprintf("%s%s\n\n%s", topicHeaderMark, strings.Join(topics, ", "), content)
}

// MatchGraphDoc reports whether a graph document path was generated from the
// given memory ID. The graph service may report either the bare filename or a
// longer path, so only the final path element is inspected.
func MatchGraphDoc(path string, id MemoryID) bool {
	if id == "" {
		return false
	}
	name := path
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	return strings.HasPrefix(name, graphDocPrefix) &&
		strings.HasSuffix(name, "_"+string(id)+graphDocExt)
}
