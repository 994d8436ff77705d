package config

// Built-in prompt templates. Each can be overridden through the "prompts"
// map in config.json; placeholders are substituted verbatim by the stage
// that uses the template.
var promptDefaults = map[string]string{
	"summary": "You are an experienced lecturer. Write a concise synopsis of the " +
		"lecture below and list the main questions it covered. The lecture " +
		"transcript follows:\n\n{transcript}",

	"suggestions": "You assist a student watching a video lecture. You are given the " +
		"full transcript annotated with start times in [HH:MM:SS] format. " +
		"Produce MANY short, concrete questions the student could ask the " +
		"lecturer while the matching topic is on screen.\n\n" +
		"Rules:\n" +
		"- Each question is {min_words} to {max_words} words.\n" +
		"- Together the questions must cover the whole duration of the video.\n" +
		"- Each question carries a relevance interval (start/end in HH:MM:SS) " +
		"of at least {min_duration}. Intervals MUST overlap so that several " +
		"questions are live at any instant.\n" +
		"- Tie every question to the lecture content: terms, definitions, steps, examples.\n" +
		"- Produce at least {min_count} questions.\n" +
		"- Return ONLY a JSON array of objects of the form:\n" +
		"  [{\"text\":\"...\",\"start\":\"HH:MM:SS\",\"end\":\"HH:MM:SS\"}, ...]\n" +
		"- No surrounding text, no comments, no explanations. JSON only.\n\n" +
		"Timecoded transcript:\n{timecoded_transcript}",

	"chat_system": "You play the role of the lecturer. Answer clearly and to the point.",

	"chat_user_template": "Lecture: {lecture}\nSynopsis: {summary}\n\n" +
		"We are currently at this part:\n{context}\n\n" +
		"Previous dialog:\n{history}\n\n" +
		"The student has a new question: {question}",

	"frame_system": "You play the role of the lecturer. Use LaTeX for formulas when it fits the material.",

	"frame_user_template": "Lecture: {lecture}\nSynopsis: {summary}\n\n" +
		"We are currently at this part:\n{context}\n\n" +
		"The area of interest is highlighted on the image with a translucent " +
		"red circle. Explain that fragment.",

	"search_answer": "You analyse video lecture content. Answer the question below using " +
		"the retrieved transcript fragments, and reference the relevant " +
		"timestamps in your answer. If the fragments are insufficient, say " +
		"what is missing.\n\nRetrieved fragments:\n{context}\n\nQuestion: {question}",
}
