package mcpserver

// ArticleFormatContract describes the article layout that LLM consumers
// should follow when updating articles.
const ArticleFormatContract = `# blogsync Article Format Contract

Every article is one Markdown file directly under the markdown directory
(default ` + "`" + `data/md/` + "`" + `), indexed in ` + "`" + `data/json/articles.json` + "`" + `.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # REQUIRED
description: One-line summary      # REQUIRED, at most 200 characters
date: "2024-01-01"                 # REQUIRED, YYYY-MM-DD, set on creation
lastModified: 2024-05-06T07:08:09Z # MANAGED, rewritten on every update
---
Body text in standard Markdown.
` + "```" + `

## Rules

1. **Front matter is mandatory.** The ` + "`" + `---` + "`" + ` fences must open the file.
2. **` + "`" + `update_article` + "`" + ` takes the body only.** Title and description are passed
   separately and written into the front matter; other keys are preserved.
3. **Paths** end with ` + "`" + `.md` + "`" + `, use forward slashes and live directly in the
   markdown directory. Generated articles are named after their title in
   lowercase kebab-case (e.g. ` + "`" + `hello-world.md` + "`" + `).
4. **The index is derived.** Never edit ` + "`" + `articles.json` + "`" + ` by hand; call
   ` + "`" + `rebuild_index` + "`" + ` after out-of-band edits.
5. **Encoding** is UTF-8.

## Example

` + "```" + `markdown
---
date: "2024-01-01"
description: Greeting
lastModified: "2024-05-06T07:08:09Z"
title: Hello
---
Hi there
` + "```" + `
`
