package lecture

import "github.com/tiroq/lectern/internal/subtitle"

const freudText = `我不知道诸位从阅读或传闻中可能已经获得了有关精神分析的哪些知识。不过我的讲题是“精神分析引论”，顾名思义，我不得不假定诸位对于本题一无所知，要我来从头讲起。至少，有一件事，我可以假定诸位是知道的——那就是：精神分析是神经错乱症的一种治疗法。这个方法和其它医药的方法不仅不同，而且常常相反。通常要使病人受一种新法的治疗时，医生往往夸张这种方法的轻便，好使病人相信它的效力。在我看来，这个办法很对，我们可以因此增加疗效。但是要用精神分析法治疗神经病患者的时候，我们的手续可就不同了。我们要告诉他这个方法如何困难，如何需要长久的时间，如何需要他本人的努力和牺牲；至于疗效如何，我们告诉他不敢预定，一切成功都靠他自己的努力、了解、适应和忍耐。我们所以要采用这种似乎反常的态度，当然有其充分的理由，这种理由诸位以后自然会了解的。`

var freudSegments = []string{
	"我不知道诸位从阅读或传闻中可能已经获得了有关精神分析的哪些知识。",
	"不过我的讲题是“精神分析引论”，顾名思义，我不得不假定诸位对于本题一无所知，要我来从头讲起。",
	"至少，有一件事，我可以假定诸位是知道的——那就是：精神分析是神经错乱症的一种治疗法。",
	"这个方法和其它医药的方法不仅不同，而且常常相反。",
	"通常要使病人受一种新法的治疗时，医生往往夸张这种方法的轻便，好使病人相信它的效力。",
	"在我看来，这个办法很对，我们可以因此增加疗效。",
	"但是要用精神分析法治疗神经病患者的时候，我们的手续可就不同了。",
	"我们要告诉他这个方法如何困难，如何需要长久的时间，如何需要他本人的努力和牺牲；",
	"至于疗效如何，我们告诉他不敢预定，一切成功都靠他自己的努力、了解、适应和忍耐。",
	"我们所以要采用这种似乎反常的态度，当然有其充分的理由，这种理由诸位以后自然会了解的。",
}

// Freud returns the built-in lecture: the opening of the Introductory
// Lectures on Psychoanalysis in Chinese, in ten hand-cut segments.
func Freud() subtitle.Script {
	return subtitle.Script{
		Title:    "精神分析引论",
		Language: "zh-CN",
		Text:     freudText,
		Segments: append([]string(nil), freudSegments...),
	}
}
