package selector

const systemPrompt = `You are a database analyst. Given a question, a hint and a database schema, you choose the tables and columns needed to answer the question with SQL. You answer with a single JSON object and nothing else.`

const userPromptTemplate = `QUESTION: %s
HINT: %s
DATABASE SCHEMA: %s
COLUMN DESCRIPTION: %s

The schema lists every table with its columns. The column descriptions give the meaning, data format and value notes of each column where known.

Select the relevant tables and columns step by step:
1. Read the question and the hint.
2. Examine the available tables and columns.
3. Select every table and column the HINT names explicitly. These must be selected as written.
4. Use the column descriptions to add further relevant columns, only after the HINT's tables and columns are selected.
5. Produce the output.

Rules:
- Tables and columns named in the HINT (%s) take priority. Do not substitute similar-looking names for them.
- From the tables related to the HINT, select all possibly relevant columns, not only the most relevant one.
- Do not select tables or columns that merely look similar to those in the HINT.
- Output a JSON object mapping each selected table to its list of columns:
` + "```json" + `
{
    "table1": ["column1", "column2"],
    "table2": ["column3"]
}
` + "```"
