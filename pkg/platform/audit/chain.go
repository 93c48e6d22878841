package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"
)

// GenesisHash is the PrevHash of the first event in every tenant chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// content is the hashed projection of an Event. encoding/json sorts map keys,
// which keeps the Payload encoding stable.
type content struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	Actor      string            `json:"actor"`
	Action     Action            `json:"action"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	OccurredAt string            `json:"occurred_at"`
	Payload    map[string]string `json:"payload"`
}

// Link attaches ev to the chain whose head has headSeq and headHash.
// An empty headHash denotes an empty chain.
func Link(ev *Event, headSeq int64, headHash string) {
	if headHash == "" {
		headHash = GenesisHash
	}
	ev.Seq = headSeq + 1
	ev.PrevHash = headHash
	ev.Hash = ComputeHash(*ev)
}

// ComputeHash returns the chain hash of ev from its PrevHash, Seq and content.
func ComputeHash(ev Event) string {
	payload := ev.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	body, err := json.Marshal(content{
		ID:         ev.ID.String(),
		TenantID:   ev.TenantID.String(),
		Actor:      ev.Actor,
		Action:     ev.Action,
		TargetType: ev.TargetType,
		TargetID:   ev.TargetID,
		OccurredAt: ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	})
	if err != nil {
		// A struct of strings and a string map cannot fail to marshal.
		panic(err)
	}

	h := sha256.New()
	h.Write([]byte(ev.PrevHash))
	h.Write([]byte("|" + strconv.FormatInt(ev.Seq, 10) + "|"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// verifier walks events in ascending Seq order and accumulates a report.
type verifier struct {
	report   VerifyReport
	wantSeq  int64
	prevHash string
}

func newVerifier() *verifier {
	return &verifier{
		report:   VerifyReport{OK: true},
		wantSeq:  1,
		prevHash: GenesisHash,
	}
}

func (v *verifier) visit(ev Event) {
	v.report.Total++
	if ev.Seq != v.wantSeq {
		v.fail(ev.Seq, "sequence gap: expected "+strconv.FormatInt(v.wantSeq, 10))
	}
	if ev.PrevHash != v.prevHash {
		v.fail(ev.Seq, "prev_hash does not match previous event")
	}
	if got := ComputeHash(ev); got != ev.Hash {
		v.fail(ev.Seq, "hash mismatch")
	}
	v.wantSeq = ev.Seq + 1
	v.prevHash = ev.Hash
	v.report.LastSeq = ev.Seq
	v.report.LastHash = ev.Hash
}

func (v *verifier) fail(seq int64, reason string) {
	v.report.OK = false
	v.report.Errors = append(v.report.Errors, ChainError{Seq: seq, Reason: reason})
}
