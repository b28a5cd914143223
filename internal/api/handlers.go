// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/async-code/flowbridge/internal/buildinfo"
	"github.com/async-code/flowbridge/internal/constant"
	"github.com/async-code/flowbridge/internal/extract"
	"github.com/async-code/flowbridge/internal/flow"
	"github.com/async-code/flowbridge/internal/runner"
)

// serviceName identifies this bridge in health responses.
const serviceName = "claude-flow-bridge"

type initRequest struct {
	Force *bool `json:"force"`
}

type swarmExecuteRequest struct {
	Prompt    string `json:"prompt"`
	RepoPath  string `json:"repo_path"`
	MaxAgents int    `json:"max_agents"`
	Topology  string `json:"topology"`
	Timeout   int64  `json:"timeout"`
}

type memorySearchRequest struct {
	Query     string  `json:"query"`
	K         int     `json:"k"`
	Threshold float64 `json:"threshold"`
	Namespace string  `json:"namespace"`
}

type memoryStoreRequest struct {
	Key       string `json:"key"`
	Content   string `json:"content"`
	Namespace string `json:"namespace"`
}

type hiveSpawnRequest struct {
	Prompt  string `json:"prompt"`
	Timeout int64  `json:"timeout"`
}

type gitChangesRequest struct {
	RepoPath string `json:"repo_path"`
}

// handleHealth reports service liveness. Always 200.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"service":   serviceName,
		"version":   buildinfo.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCheck probes whether the claude-flow CLI answers a help invocation.
func (s *Server) handleCheck(c *gin.Context) {
	if _, err := s.svc.Execute(c.Request.Context(), flow.CheckCommand{}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":    "error",
			"installed": false,
			"message":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"installed": true,
	})
}

// handleInit runs claude-flow workspace initialization. Force defaults to
// true; callers pass {"force": false} to opt out.
func (s *Server) handleInit(c *gin.Context) {
	var req initRequest
	if !s.bindJSON(c, &req) {
		return
	}
	force := req.Force == nil || *req.Force

	res, err := s.svc.Execute(c.Request.Context(), flow.InitCommand{Force: force})
	if err != nil {
		s.writeCommandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"output": res.Stdout,
	})
}

// handleSwarmExecute launches a swarm run and shapes its output into the
// execution envelope. When the request names a repository, the uncommitted
// files left behind are reported alongside the output.
func (s *Server) handleSwarmExecute(c *gin.Context) {
	var req swarmExecuteRequest
	if !s.bindJSON(c, &req) {
		return
	}

	log.WithField(requestIDKey, c.GetString(requestIDKey)).
		Infof("swarm execute: %q (max_agents=%d topology=%s)", truncateRunes(req.Prompt, constant.MaxPromptLogLength), req.MaxAgents, req.Topology)

	cmd := flow.SwarmCommand{
		Prompt:           req.Prompt,
		RepoPath:         req.RepoPath,
		MaxAgents:        req.MaxAgents,
		Topology:         req.Topology,
		RequestTimeoutMs: req.Timeout,
	}
	res, err := s.svc.Execute(c.Request.Context(), cmd)
	if err != nil {
		s.writeCommandError(c, err)
		return
	}

	agents := extract.AgentCount(res.Stdout)
	s.svc.RecordAgents(agents)

	envelope := gin.H{
		"status":         "success",
		"execution_time": res.Elapsed.Milliseconds(),
		"output":         res.Stdout,
		"errors":         res.Stderr,
		"prompt":         truncateRunes(req.Prompt, constant.MaxPromptLogLength),
		"agents_used":    agents,
	}
	if req.RepoPath != "" {
		if changes, changesErr := s.collector.Collect(c.Request.Context(), req.RepoPath); changesErr != nil {
			log.Debugf("change detection skipped for %s: %v", req.RepoPath, changesErr)
		} else {
			envelope["changes_detected"] = changes.ChangedFiles
		}
	}
	c.JSON(http.StatusOK, envelope)
}

// handleMemorySearch runs a vector search and returns parsed results, or the
// raw output wrapped as an unstructured payload when parsing fails.
func (s *Server) handleMemorySearch(c *gin.Context) {
	var req memorySearchRequest
	if !s.bindJSON(c, &req) {
		return
	}

	cmd := flow.MemorySearchCommand{
		Query:     req.Query,
		K:         req.K,
		Threshold: req.Threshold,
		Namespace: req.Namespace,
	}
	res, err := s.svc.Execute(c.Request.Context(), cmd)
	if err != nil {
		s.writeCommandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"results": extract.MemoryResults(res.Stdout),
		"query":   req.Query,
	})
}

// handleMemoryStore persists a key/content pair in claude-flow memory.
func (s *Server) handleMemoryStore(c *gin.Context) {
	var req memoryStoreRequest
	if !s.bindJSON(c, &req) {
		return
	}

	cmd := flow.MemoryStoreCommand{
		Key:       req.Key,
		Content:   req.Content,
		Namespace: req.Namespace,
	}
	if _, err := s.svc.Execute(c.Request.Context(), cmd); err != nil {
		s.writeCommandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "Memory stored successfully",
		"key":       req.Key,
		"namespace": req.Namespace,
	})
}

// handleHiveSpawn launches a hive-mind coordinated run.
func (s *Server) handleHiveSpawn(c *gin.Context) {
	var req hiveSpawnRequest
	if !s.bindJSON(c, &req) {
		return
	}

	cmd := flow.HiveSpawnCommand{
		Prompt:           req.Prompt,
		RequestTimeoutMs: req.Timeout,
	}
	res, err := s.svc.Execute(c.Request.Context(), cmd)
	if err != nil {
		s.writeCommandError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"execution_time": res.Elapsed.Milliseconds(),
		"output":         res.Stdout,
		"errors":         res.Stderr,
	})
}

// handleStats returns the in-memory invocation statistics snapshot.
func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"stats":  s.registry.Snapshot(),
	})
}

// handleGitChanges reports the uncommitted delta of a repository.
func (s *Server) handleGitChanges(c *gin.Context) {
	var req gitChangesRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if req.RepoPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Repo path is required",
		})
		return
	}

	changes, err := s.collector.Collect(c.Request.Context(), req.RepoPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"diff":          changes.Diff,
		"staged_diff":   changes.StagedDiff,
		"changed_files": changes.ChangedFiles,
		"has_changes":   changes.HasChanges,
	})
}

// handleNoRoute answers unknown paths with the uniform error envelope.
func (s *Server) handleNoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"status":  "error",
		"message": fmt.Sprintf("no route for %s %s", c.Request.Method, c.Request.URL.Path),
	})
}

// bindJSON decodes the request body into dst. An empty body decodes as an
// empty document so required-field validation produces the capability's own
// message instead of a generic parse error. Returns false when an error
// response has already been written.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"status":  "error",
			"message": fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit),
		})
		return false
	}

	c.JSON(http.StatusBadRequest, gin.H{
		"status":  "error",
		"message": "invalid request body",
	})
	return false
}

// writeCommandError translates a command failure into its HTTP envelope.
// Validation failures are client errors; everything else from the runner is
// a server error. Partial output captured before a timeout or a non-zero
// exit is surfaced for debuggability.
func (s *Server) writeCommandError(c *gin.Context, err error) {
	var vErr *flow.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": vErr.Message,
		})
		return
	}

	envelope := gin.H{
		"status":  "error",
		"message": err.Error(),
	}

	var tErr *runner.TimeoutError
	var xErr *runner.ExitError
	switch {
	case errors.As(err, &tErr):
		envelope["execution_time"] = tErr.Elapsed.Milliseconds()
		if tErr.Result != nil {
			envelope["output"] = tErr.Result.Stdout
			envelope["errors"] = tErr.Result.Stderr
		}
		if tErr.Canceled {
			log.WithField(requestIDKey, c.GetString(requestIDKey)).
				Infof("client disconnected, command canceled after %s", tErr.Elapsed.Round(time.Millisecond))
		}
	case errors.As(err, &xErr):
		if xErr.Result != nil {
			envelope["execution_time"] = xErr.Result.Elapsed.Milliseconds()
			envelope["output"] = xErr.Result.Stdout
			envelope["errors"] = xErr.Result.Stderr
		}
	}

	c.JSON(http.StatusInternalServerError, envelope)
}

// truncateRunes shortens s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
