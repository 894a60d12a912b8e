// Package yaml_adapter loads pipeline definitions written in YAML into the
// same model as the HCL loader.
//
//	name: container-build
//	params:
//	  - name: git_url
//	    type: string
//	workspaces:
//	  - name: ws-container
//	tasks:
//	  - name: clone
//	    ref: {name: git-clone, version: "1"}
//	    workspaces:
//	      - {name: source, workspace: ws-container}
//	    params:
//	      url: $(params.git_url)
//	finally:
//	  name: exit
//	  ref: print@1
//	  params:
//	    status: $(tasks.status)
package yaml_adapter
