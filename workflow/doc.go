// Copyright (c) Microsoft. All rights reserved.

// Package workflow contains multi-agent workflows built on the agent
// framework and the groupchat package.
//
// Teams come from a YAML catalogue embedded in the package (see
// [Builtin]); a [Factory] turns catalogue entries into agents with
// workspace tools. On top of that:
//
//   - [Assistant] classifies plain-language requests and hands them to the
//     matching team.
//   - [DevPipeline] takes a specification through implementation, tests and
//     debug rounds until the tests pass.
//   - [Research] writes a paper stage by stage with persistent state.
//   - [Analytics] runs the analytics specialists in parallel.
//   - [WebDev] builds a web application one layer at a time.
//
// All workflows share the functional [Option] set.
package workflow
