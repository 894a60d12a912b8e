// Package hcl_adapter loads pipeline definitions written in HCL.
//
//	pipeline "container-build" {}
//	param "git_url" { type = string }
//	workspace "ws-container" {}
//	task "clone" {
//	  ref        = "git-clone@1"
//	  workspaces = { source = "ws-container" }
//	  params     = { url = "$(params.git_url)" }
//	}
//	finally "exit" {
//	  ref    = "print@1"
//	  params = { status = "$(tasks.status)" }
//	}
package hcl_adapter
