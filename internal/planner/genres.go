package planner

import (
	"slices"
	"strings"
)

// genres is the built-in genre list shown by plan --genres. Constraints accept
// any genre string.
var genres = []string{
	"官场逆袭", "官场", "体制", "职场", "职场商战", "创业", "商业复仇", "金融风云",
	"都市热血", "都市日常", "都市高武", "灵气复苏", "异能", "系统流", "都市修仙", "神医", "鉴宝", "律师", "医生", "娱乐圈",
	"现代言情", "豪门总裁", "先婚后爱", "破镜重圆", "甜宠", "虐恋", "婚恋", "萌宝",
	"青春校园", "都市生活",
	"古代言情", "宫斗宅斗", "女强", "穿越重生", "年代文", "种田", "美食",
	"扫黑除恶", "悬疑破案", "悬疑灵异", "灵异", "犯罪", "推理", "谍战",
	"玄幻", "仙侠", "武侠", "奇幻", "洪荒",
	"科幻", "星际", "赛博朋克", "末世", "无限流",
	"历史", "架空历史", "军事",
	"游戏", "电竞", "体育",
	"同人", "二次元",
	"校园", "纯爱", "百合", "ABO", "克苏鲁", "奇闻怪谈", "真人秀", "直播", "无限恐怖", "美娱", "反派", "群像",
}

// themeSuggestions maps a genre to starting premises. Genres without an
// entry have no suggestions.
var themeSuggestions = map[string][]string{
	"官场逆袭": {
		"草根逆袭官场，卷入扫黑风暴，凭智谋破局",
		"基层小吏被迫入局，反腐风暴中步步上位",
		"纪委暗线+政商勾连，旧案重启牵出保护伞",
		"调岗下放后绝地翻盘，借势改革撬动利益格局",
	},
	"官场": {
		"基层科员步步为营，博弈人情与规则，破局上位",
		"组织路线与派系斗争，借项目与招商破局晋升",
		"政法系统暗流，规则与底线的长期拉锯",
	},
	"体制": {
		"单位生态与资源分配，暗战升级，破局上岸",
		"巡察进驻引爆旧账，主角借势清算反杀",
	},
	"职场": {
		"小镇青年入大厂，项目攻坚与人性博弈双线推进",
		"从背锅到反杀，证据链与舆论战逆转口碑",
		"职场PUA与反PUA，底线与成长的拉扯",
	},
	"职场商战": {
		"从小职员到掌舵者，资本暗战与人性博弈",
		"并购夺权、财务造假、审计追凶，连环反转",
		"对赌协议与股权暗战，卧底线索撬动巨鳄",
	},
	"创业": {
		"从0到1创业突围，融资暗战与伙伴背叛",
		"风口项目变局，产品、渠道、资本三线对抗",
	},
	"商业复仇": {
		"家族企业被夺，主角卧薪尝胆，十年布局复仇",
		"商会与豪门博弈，借势反杀，步步夺回主导权",
	},
	"金融风云": {
		"量化黑盒与内幕交易疑云，合规与贪婪对决",
		"基金经理沉浮，做空反做空，资本局中局",
	},
	"都市热血": {
		"落魄高手回归都市，扮猪吃虎，建立商业帝国",
		"兄弟情义+地下势力对抗，升级打脸爽点密集",
	},
	"都市日常": {
		"普通人逆风翻盘，事业与生活双线成长",
		"邻里烟火与职场成长，温暖治愈中暗藏反转",
	},
	"都市高武": {
		"热血高燃的都市强者体系，对抗暗流势力",
		"觉醒者与秩序机构对立，能力代价与规则束缚",
	},
	"灵气复苏": {
		"灵气复苏时代，主角抢占先机，宗门与官方博弈",
		"秘境降临、资源争夺，城市生存与势力争霸",
	},
	"异能": {
		"超能力觉醒，官方收容与黑市组织双线追杀",
		"能力有代价，越强越失控，靠规则与智谋取胜",
	},
	"系统流": {
		"系统任务驱动成长，主线暗藏阴谋，爽点密集反转",
		"排行榜与副本机制，奖励诱惑与惩罚代价并存",
	},
	"都市修仙": {
		"现代都市修仙，隐秘宗门与世俗势力对抗",
		"灵气断绝时代重启修仙路，古今法则碰撞",
	},
	"神医": {
		"传承医术救死扶伤，医道与权谋双线推进",
		"中西医结合，破解疑难杂症，声名鹊起",
	},
	"鉴宝": {
		"异能鉴宝，古玩市场风云，捡漏与复仇并行",
		"文物修复与鉴定，揭开历史谜团",
	},
	"律师": {
		"新人律师接手悬案，法庭辩论与幕后博弈",
		"从小案到大案，正义与利益的天平",
	},
	"医生": {
		"急诊医生救死扶伤，医疗体制与人性拷问",
		"外科圣手成长之路，医术与医德的抉择",
	},
	"娱乐圈": {
		"小透明逆袭娱乐圈，作品为王打脸黑粉",
		"资本操控与艺人反抗，流量与实力的较量",
	},
	"现代言情": {
		"都市男女情感纠葛，误会与和解",
		"职场精英爱情故事，事业爱情双丰收",
	},
	"豪门总裁": {
		"霸道总裁爱上我，甜宠虐渣双管齐下",
		"豪门恩怨情仇，真爱战胜一切",
	},
	"先婚后爱": {
		"契约婚姻日久生情，从陌生到挚爱",
		"联姻背后的阴谋与真情",
	},
	"破镜重圆": {
		"前任回归重新追妻，弥补遗憾",
		"误会解开，真爱重燃",
	},
	"甜宠": {
		"甜蜜恋爱，无虐纯糖",
		"宠文到底，温馨治愈",
	},
	"虐恋": {
		"爱而不得，情感拉扯",
		"深情虐恋，最终HE",
	},
	"婚恋": {
		"婚姻生活百态，柴米油盐中的爱情",
		"婆媳关系与夫妻相处之道",
	},
	"萌宝": {
		"萌娃助攻父母复合，天使宝宝暖心治愈",
		"带娃日常，温馨搞笑",
	},
	"青春校园": {
		"校园纯爱，青涩懵懂的初恋",
		"学霸学渣的甜蜜互动",
	},
	"都市生活": {
		"市井生活百态，小人物的奋斗史",
		"家长里短中的温情与智慧",
	},
	"古代言情": {
		"穿越古代，改变命运",
		"古代爱情传奇，跨越阶层的真爱",
	},
	"宫斗宅斗": {
		"后宫争宠，权谋与情感交织",
		"宅门深深，智斗恶毒亲眷",
	},
	"女强": {
		"女主强势崛起，事业爱情双丰收",
		"巾帼不让须眉，建功立业",
	},
	"穿越重生": {
		"重生归来，改写命运",
		"穿越异世，开挂人生",
	},
	"年代文": {
		"七八十年代奋斗史，时代变迁中的个人命运",
		"知青下乡，艰苦岁月中的成长",
	},
	"种田": {
		"田园生活，发家致富",
		"古代农家女逆袭，种田经商两不误",
	},
	"美食": {
		"美食征服世界，舌尖上的传奇",
		"厨艺传承，美食与文化",
	},
}

// Genres returns the built-in genre list in display order.
func Genres() []string {
	return slices.Clone(genres)
}

// ThemeSuggestions returns example premises for genre, or nil when the genre
// has none. Genre is matched exactly after trimming.
func ThemeSuggestions(genre string) []string {
	return slices.Clone(themeSuggestions[strings.TrimSpace(genre)])
}
