package service

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"log"
	"strings"

	"github.com/tidwall/gjson"

	"taskbot/internal/config"
	"taskbot/internal/orchestrator"
)

type CIServiceInterface interface {
	VerifySignature(payload []byte, signature string) bool
	ParseStatus(payload []byte) (orchestrator.CIStatus, error)
	ExtractCommit(payload []byte) CommitInfo
}

// CIService turns raw GitHub webhook deliveries into the CI status signal
// the orchestration core consumes.
type CIService struct {
	secret string
}

type CommitInfo struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	URL     string `json:"url"`
	Branch  string `json:"branch"`
	Repo    string `json:"repo"`
}

func NewCIService() *CIService {
	return &CIService{secret: config.LoadGithubConfig().WebhookSecret}
}

// VerifySignature checks the X-Hub-Signature(-256) header against the body.
// With no secret configured verification is skipped, which is logged.
func (s *CIService) VerifySignature(payload []byte, signature string) bool {
	if s.secret == "" {
		log.Println("GitHub webhook secret not set, skipping signature verification")
		return true
	}
	algo, sig, found := strings.Cut(signature, "=")
	if !found {
		return false
	}
	var mac hash.Hash
	switch strings.ToLower(algo) {
	case "sha1":
		mac = hmac.New(sha1.New, []byte(s.secret))
	case "sha256":
		mac = hmac.New(sha256.New, []byte(s.secret))
	default:
		log.Printf("Unsupported signature algorithm: %s", algo)
		return false
	}
	mac.Write(payload)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(sig))
}

// ParseStatus maps workflow_run, check_suite and status payloads onto the
// core's status enum. Conclusions that signal neither pass nor fail stay
// pending; anything unrecognized is an error signal, never a pass.
func (s *CIService) ParseStatus(payload []byte) (orchestrator.CIStatus, error) {
	body := string(payload)

	if run := gjson.Get(body, "workflow_run.conclusion"); run.Exists() {
		return mapConclusion(run.String())
	}
	if suite := gjson.Get(body, "check_suite.conclusion"); suite.Exists() {
		return mapConclusion(suite.String())
	}
	if state := gjson.Get(body, "state"); state.Exists() {
		switch state.String() {
		case "success":
			return orchestrator.CISuccess, nil
		case "failure":
			return orchestrator.CIFailure, nil
		case "pending":
			return orchestrator.CIPending, nil
		case "error":
			return orchestrator.CIError, nil
		}
		return orchestrator.CIError, fmt.Errorf("unknown status state %q", state.String())
	}
	return orchestrator.CIError, fmt.Errorf("payload carries no recognizable CI signal")
}

func mapConclusion(conclusion string) (orchestrator.CIStatus, error) {
	switch conclusion {
	case "success":
		return orchestrator.CISuccess, nil
	case "failure", "cancelled", "timed_out":
		return orchestrator.CIFailure, nil
	case "", "waiting", "queued", "in_progress", "pending":
		return orchestrator.CIPending, nil
	default:
		return orchestrator.CIError, fmt.Errorf("unknown conclusion %q", conclusion)
	}
}

// ExtractCommit pulls the commit identity out of whichever event shape
// delivered it, so the task can be located by SHA.
func (s *CIService) ExtractCommit(payload []byte) CommitInfo {
	body := string(payload)
	info := CommitInfo{
		Repo: gjson.Get(body, "repository.full_name").String(),
	}

	if run := gjson.Get(body, "workflow_run"); run.Exists() {
		info.SHA = run.Get("head_sha").String()
		info.URL = run.Get("html_url").String()
		info.Branch = run.Get("head_branch").String()
	} else if suite := gjson.Get(body, "check_suite"); suite.Exists() {
		info.SHA = suite.Get("head_sha").String()
		info.URL = suite.Get("html_url").String()
		info.Branch = suite.Get("head_branch").String()
	} else if sha := gjson.Get(body, "sha"); sha.Exists() {
		info.SHA = sha.String()
		info.Message = gjson.Get(body, "commit.message").String()
		info.URL = gjson.Get(body, "commit.html_url").String()
	}

	if first := gjson.Get(body, "commits.0"); first.Exists() {
		if info.SHA == "" {
			info.SHA = first.Get("id").String()
		}
		if info.Message == "" {
			info.Message = first.Get("message").String()
		}
		if info.URL == "" {
			info.URL = first.Get("url").String()
		}
	}
	return info
}
